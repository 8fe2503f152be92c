// Package netinfo is the host-information collaborator named in §6:
// interface indices, link-layer addresses, MTU, prefixes,
// and the default IPv6 route. It is consulted by package radv to resolve
// "NotSpecified" configuration and to synthesize configuration for
// interfaces that have no matching block in the configuration file.
//
// All methods return immutable snapshots and are safe for concurrent use,
// matching the "Netinfo adapter (collaborator)" contract in §6.
package netinfo

import (
	"context"
	"net"
)

// LinkLayerKind distinguishes the variants of link-layer address the
// data model recognizes (§3 "NetAddr / LinkLayer").
type LinkLayerKind int

// Recognized link-layer address kinds.
const (
	LinkLayerUnknown LinkLayerKind = iota
	LinkLayerEthernet
)

// LinkLayerAddr is a link-layer address tagged with its kind.  Only
// Ethernet addresses are meaningful for Source Link-Layer Address option
// synthesis (§4.4); any other kind is reported as Unknown and causes the
// RA builder to omit the option.
type LinkLayerAddr struct {
	Kind     LinkLayerKind
	Ethernet net.HardwareAddr
}

// Prefix is an (address, prefix-length) tuple assigned to an interface.
type Prefix struct {
	Addr      net.IP
	PrefixLen int
}

// Interface is an immutable snapshot of one network interface's metadata.
type Interface struct {
	Index       int
	Name        string
	Multicast   bool
	MTU         int
	HardwareAddr LinkLayerAddr
	Prefixes    []Prefix
}

// DefaultRoute is the host's default IPv6 route, or the zero value with
// Present=false if none exists.
type DefaultRoute struct {
	Present bool
	Gateway net.IP
	IfIndex int
}

// Provider is the interface package radv depends on to learn about the
// host's network interfaces. Implementations must be safe for concurrent
// use and must return snapshots, never a reference callers can mutate.
type Provider interface {
	// Interfaces returns metadata for every interface on the host.
	Interfaces(ctx context.Context) ([]Interface, error)

	// InterfaceByIndex returns metadata for one interface, or an error
	// wrapping [ErrNoSuchInterface] if ifIndex does not exist.
	InterfaceByIndex(ctx context.Context, ifIndex int) (Interface, error)

	// DefaultRouteIPv6 returns the host's default IPv6 route.
	DefaultRouteIPv6(ctx context.Context) (DefaultRoute, error)
}
