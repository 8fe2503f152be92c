// Package config loads the on-disk configuration document named in §6:
// the fields this core consumes directly (dns_servers, dns_search,
// captive_portal, addresses, ra.interfaces) plus the ambient fields every
// deployment needs (log level, listen addresses, metrics bind address,
// cookie-rotation interval).
package config

import (
	"net"
	"os"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"gopkg.in/yaml.v3"

	"github.com/stappersg/erbium/internal/radv"
)

// DefaultPath is the configuration file read when no positional CLI
// argument overrides it, per §6's CLI surface.
const DefaultPath = "erbium.conf"

// defaultCookieRotationInterval mirrors internal/cookie.DefaultRotationInterval
// so a document that omits the field still rotates hourly.
const defaultCookieRotationInterval = time.Hour

// Default rate-limiter bucket parameters. §4.9 leaves the implementer to
// choose a capacity and refill rate, requiring only that capacity be at
// least as large as the largest possible DNS response; 65535 octets
// covers the largest TCP-length-prefixed message, and a 4096/s refill
// keeps the sustained bound (2R, per §9) well under a typical access
// link's capacity.
const (
	defaultRateLimiterCapacity = 65535
	defaultRateLimiterRate     = 4096
)

// raSection is the "ra" document key, holding the per-interface RA
// configuration blocks §3 calls "ra.interfaces".
type raSection struct {
	Interfaces map[string]radv.InterfaceConfig `yaml:"interfaces"`
}

// Document is the full on-disk configuration, combining §6's core fields
// with the ambient fields a deployment needs to run.
type Document struct {
	DNSServers    []net.IP  `yaml:"dns_servers"`
	DNSSearch     []string  `yaml:"dns_search"`
	CaptivePortal string    `yaml:"captive_portal"`
	Addresses     []net.IP  `yaml:"addresses"`
	RA            raSection `yaml:"ra"`

	LogLevel               string        `yaml:"log_level"`
	DNSListenAddr          string        `yaml:"dns_listen_addr"`
	MetricsListenAddr      string        `yaml:"metrics_listen_addr"`
	CookieRotationInterval time.Duration `yaml:"cookie_rotation_interval"`
	RateLimiterCapacity    float64       `yaml:"rate_limiter_capacity"`
	RateLimiterRate        float64       `yaml:"rate_limiter_rate"`
}

// Load reads and decodes the document at path.
func Load(path string) (doc *Document, err error) {
	defer func() { err = errors.Annotate(err, "loading config %q: %w", path) }()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	doc = &Document{
		LogLevel:               "info",
		DNSListenAddr:          "[::]:53",
		MetricsListenAddr:      "",
		CookieRotationInterval: defaultCookieRotationInterval,
		RateLimiterCapacity:    defaultRateLimiterCapacity,
		RateLimiterRate:        defaultRateLimiterRate,
	}

	if err = yaml.NewDecoder(f).Decode(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// Validate checks invariants Load cannot enforce by itself. An empty
// ra.interfaces map is not an error: internal/daemon always starts both
// services (§1), and an interface with no matching block still gets
// synthesized configuration from those of its host addresses that appear
// in addresses, per §4.4.
func (d *Document) Validate() error {
	return nil
}

// RAConfig projects the document's RA-relevant fields into
// [radv.Config].
func (d *Document) RAConfig() radv.Config {
	return radv.Config{
		DNSServers:    d.DNSServers,
		DNSSearch:     d.DNSSearch,
		CaptivePortal: d.CaptivePortal,
		Addresses:     d.Addresses,
		Interfaces:    d.RA.Interfaces,
	}
}
