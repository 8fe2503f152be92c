package radv_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stappersg/erbium/internal/ndp"
	"github.com/stappersg/erbium/internal/radv"
)

func findOption[T any](t *testing.T, opts []ndp.Option) (out T, ok bool) {
	t.Helper()
	for _, o := range opts {
		if v, match := o.(T); match {
			return v, true
		}
	}
	return out, false
}

// TestBuildAnnouncement_S1 is end-to-end scenario S1: unsolicited RA on a
// one-prefix interface with explicit RDNSS/DNSSL and lifetime.
func TestBuildAnnouncement_S1(t *testing.T) {
	t.Parallel()

	ic := radv.InterfaceConfig{
		Prefixes: []radv.PrefixConfig{
			{Addr: net.ParseIP("2001:db8::"), PrefixLen: 64, OnLink: true, Autonomous: true, Valid: 3600, Preferred: 3600},
		},
		RDNSS:         radv.Explicit([]net.IP{net.ParseIP("2001:db8::53")}),
		RDNSSLifetime: 3600,
		DNSSL:         radv.Explicit([]string{"example.com"}),
		DNSSLLifetime: 3600,
	}

	mtu := uint32(1500)
	ll := net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

	ra := radv.BuildAnnouncement(radv.BuildParams{
		Interface: ic,
		LinkLayer: ll,
		MTU:       &mtu,
		Self6:     net.ParseIP("2001:db8::1"),
		Lifetime:  3600,
	})

	assert.Equal(t, uint16(3600), ra.RouterLifetime)

	sla, ok := findOption[ndp.SourceLLAddrOption](t, ra.Options)
	require.True(t, ok, "expected SourceLLAddr option")
	assert.Equal(t, ll, sla.Addr)

	mtuOpt, ok := findOption[ndp.MTUOption](t, ra.Options)
	require.True(t, ok, "expected MTU option")
	assert.Equal(t, uint32(1500), mtuOpt.MTU)

	prefix, ok := findOption[ndp.PrefixInfoOption](t, ra.Options)
	require.True(t, ok, "expected Prefix Information option")
	assert.Equal(t, uint8(64), prefix.PrefixLength)
	assert.True(t, prefix.OnLink)
	assert.True(t, prefix.Autonomous)

	rdnss, ok := findOption[ndp.RDNSSOption](t, ra.Options)
	require.True(t, ok, "expected RDNSS option")
	assert.Equal(t, uint32(3600), rdnss.Lifetime)
	assert.Equal(t, []net.IP{net.ParseIP("2001:db8::53")}, rdnss.Servers)

	dnssl, ok := findOption[ndp.DNSSLOption](t, ra.Options)
	require.True(t, ok, "expected DNSSL option")
	assert.Equal(t, []string{"example.com"}, dnssl.Domains)
}

// TestBuildAnnouncement_S2 is end-to-end scenario S2: NotSpecified RDNSS
// with "::" substituted by self6 in the global dns_servers list, plus
// global-fallback DNSSL and captive portal.
func TestBuildAnnouncement_S2(t *testing.T) {
	t.Parallel()

	global := radv.Config{
		DNSServers:    []net.IP{net.ParseIP("192.0.2.53"), net.ParseIP("2001:db8::53")},
		DNSSearch:     []string{"example.com"},
		CaptivePortal: "example.com",
	}

	ic := radv.InterfaceConfig{
		RDNSS:         radv.NotSpecifiedValue[[]net.IP](),
		DNSSL:         radv.NotSpecifiedValue[[]string](),
		CaptivePortal: radv.NotSpecifiedValue[string](),
	}

	ra := radv.BuildAnnouncement(radv.BuildParams{
		Global:    global,
		Interface: ic,
		Self6:     net.ParseIP("2001:db8::1"),
	})

	rdnss, ok := findOption[ndp.RDNSSOption](t, ra.Options)
	require.True(t, ok)
	assert.Equal(t, []net.IP{net.ParseIP("2001:db8::53")}, rdnss.Servers, "IPv4 entries must be excluded")

	dnssl, ok := findOption[ndp.DNSSLOption](t, ra.Options)
	require.True(t, ok)
	assert.Equal(t, []string{"example.com"}, dnssl.Domains)

	portal, ok := findOption[ndp.CaptivePortalOption](t, ra.Options)
	require.True(t, ok)
	assert.Equal(t, "example.com", portal.URI)
}

// TestBuildAnnouncement_S2_SubstitutesSelf6 exercises the "::" ->
// self6 substitution rule in isolation.
func TestBuildAnnouncement_S2_SubstitutesSelf6(t *testing.T) {
	t.Parallel()

	global := radv.Config{
		DNSServers: []net.IP{net.IPv6unspecified, net.ParseIP("2001:db8::53")},
	}
	ic := radv.InterfaceConfig{RDNSS: radv.NotSpecifiedValue[[]net.IP]()}
	self6 := net.ParseIP("2001:db8::1")

	ra := radv.BuildAnnouncement(radv.BuildParams{Global: global, Interface: ic, Self6: self6})

	rdnss, ok := findOption[ndp.RDNSSOption](t, ra.Options)
	require.True(t, ok)
	assert.Contains(t, rdnss.Servers, self6)
	assert.Contains(t, rdnss.Servers, net.ParseIP("2001:db8::53"))
}

// TestBuildAnnouncement_S3 is end-to-end scenario S3: DontSet suppresses
// RDNSS, DNSSL, and captive portal even though globals are populated.
func TestBuildAnnouncement_S3(t *testing.T) {
	t.Parallel()

	global := radv.Config{
		DNSServers:    []net.IP{net.ParseIP("2001:db8::53")},
		DNSSearch:     []string{"example.com"},
		CaptivePortal: "example.com",
	}

	ic := radv.InterfaceConfig{
		RDNSS:         radv.DontSet[[]net.IP](),
		DNSSL:         radv.DontSet[[]string](),
		CaptivePortal: radv.DontSet[string](),
	}

	ra := radv.BuildAnnouncement(radv.BuildParams{Global: global, Interface: ic, Self6: net.ParseIP("2001:db8::1")})

	_, hasRDNSS := findOption[ndp.RDNSSOption](t, ra.Options)
	_, hasDNSSL := findOption[ndp.DNSSLOption](t, ra.Options)
	_, hasPortal := findOption[ndp.CaptivePortalOption](t, ra.Options)

	assert.False(t, hasRDNSS)
	assert.False(t, hasDNSSL)
	assert.False(t, hasPortal)
}

func TestBuildAnnouncement_OmitsLinkLayerAndMTUWhenAbsent(t *testing.T) {
	t.Parallel()

	ra := radv.BuildAnnouncement(radv.BuildParams{Interface: radv.InterfaceConfig{}, Self6: net.ParseIP("fe80::1")})

	_, hasLL := findOption[ndp.SourceLLAddrOption](t, ra.Options)
	_, hasMTU := findOption[ndp.MTUOption](t, ra.Options)
	assert.False(t, hasLL)
	assert.False(t, hasMTU)
}

func TestSelectLifetime(t *testing.T) {
	t.Parallel()

	t.Run("dont-set forces zero", func(t *testing.T) {
		t.Parallel()
		got := radv.SelectLifetime(radv.DontSet[uint16](), radv.DefaultRouteInfo{Present: true, IfIndex: 2}, 1)
		assert.Zero(t, got)
	})

	t.Run("explicit overrides unconditionally", func(t *testing.T) {
		t.Parallel()
		got := radv.SelectLifetime(radv.Explicit[uint16](42), radv.DefaultRouteInfo{Present: true, IfIndex: 1}, 1)
		assert.Equal(t, uint16(42), got)
	})

	t.Run("not specified with default route elsewhere", func(t *testing.T) {
		t.Parallel()
		got := radv.SelectLifetime(radv.NotSpecifiedValue[uint16](), radv.DefaultRouteInfo{Present: true, IfIndex: 2}, 1)
		assert.Equal(t, uint16(3*radv.MaxRtrAdvInterval), got)
	})

	t.Run("not specified with default route on same interface", func(t *testing.T) {
		t.Parallel()
		got := radv.SelectLifetime(radv.NotSpecifiedValue[uint16](), radv.DefaultRouteInfo{Present: true, IfIndex: 1}, 1)
		assert.Zero(t, got)
	})

	t.Run("not specified with no default route", func(t *testing.T) {
		t.Parallel()
		got := radv.SelectLifetime(radv.NotSpecifiedValue[uint16](), radv.DefaultRouteInfo{Present: false}, 1)
		assert.Zero(t, got)
	})
}

func TestConfigValue_Semantics(t *testing.T) {
	t.Parallel()

	var zero radv.ConfigValue[int]
	assert.True(t, zero.IsNotSpecified())

	ds := radv.DontSet[int]()
	assert.True(t, ds.IsDontSet())
	_, ok := ds.Value()
	assert.False(t, ok)

	v := radv.Explicit(7)
	got, ok := v.Value()
	assert.True(t, ok)
	assert.Equal(t, 7, got)
}
