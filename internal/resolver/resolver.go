// Package resolver defines the collaborator surface the DNS ingress
// engine calls to turn a parsed inbound query into an upstream answer. No
// recursive, caching, or authoritative implementation lives here — that
// is out of this core's scope; only the interface and the small fixed
// answers the ingress engine needs to report its own reply conditions.
package resolver

import (
	"context"
	"net/netip"

	"github.com/miekg/dns"
)

// Protocol is the transport a query arrived on.
type Protocol int

// Recognized transports.
const (
	ProtocolUDP Protocol = iota
	ProtocolTCP
)

// String returns the protocol's metric label, per §6's
// dns_in_query_result{protocol} convention.
func (p Protocol) String() string {
	switch p {
	case ProtocolUDP:
		return "UDP"
	case ProtocolTCP:
		return "TCP"
	default:
		return "unknown"
	}
}

// DNSMessage is a parsed inbound query plus the metadata §3 requires for
// reply synthesis and rate limiting: the raw datagram size (the
// anti-amplification baseline), the local address the query was received
// on (NSID payload and cookie input), and the full peer address.
type DNSMessage struct {
	Query      *dns.Msg
	InSize     int
	LocalIP    netip.Addr
	RemoteAddr netip.AddrPort
	Protocol   Protocol
}

// Handler resolves a query into an upstream answer. It must be safe to
// call concurrently from many tasks and must not mutate msg.
type Handler interface {
	Handle(ctx context.Context, msg *DNSMessage) (*dns.Msg, error)
}

// NotAuthoritative is a Handler that refuses every query, for deployments
// that run the RA/ingress shell without an actual resolution stack behind
// it.
type NotAuthoritative struct{}

// Handle always returns ErrNotAuthoritative.
func (NotAuthoritative) Handle(context.Context, *DNSMessage) (*dns.Msg, error) {
	return nil, ErrNotAuthoritative
}
