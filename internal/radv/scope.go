package radv

import (
	"bytes"
	"net"
)

// Scope classifies an IPv6 address for the "best source address on this
// link" selection in §4.3.
type Scope int

// Recognized address scopes.
const (
	ScopeOther        Scope = iota // Loopback, Unspecified, Multicast, or anything unrecognized
	ScopeLinkLocal
	ScopeGlobal
	ScopeUniqueLocal
)

// ClassifyScope is a pure function of a 128-bit IPv6 address.  Anything
// that isn't recognized (including a malformed or non-IPv6 address) sorts
// as [ScopeOther], the lowest position, mirroring the reference
// implementation's fallback-to-minimum behavior.
func ClassifyScope(ip net.IP) Scope {
	ip = ip.To16()
	if ip == nil || ip.To4() != nil {
		return ScopeOther
	}

	switch {
	case ip.IsLoopback(), ip.IsUnspecified(), ip.IsMulticast():
		return ScopeOther
	case isUniqueLocal(ip):
		return ScopeUniqueLocal
	case isStrictLinkLocal(ip):
		return ScopeLinkLocal
	case ip.IsGlobalUnicast():
		return ScopeGlobal
	default:
		return ScopeOther
	}
}

// isUniqueLocal reports whether ip is in fc00::/7.
func isUniqueLocal(ip net.IP) bool {
	return ip[0]&0xfe == 0xfc
}

// isStrictLinkLocal reports whether ip is in fe80::/64 in its strict
// form: the first 64 bits are exactly fe80:0000:0000:0000 (as opposed to
// the broader fe80::/10 range RFC 4291 technically allows).
func isStrictLinkLocal(ip net.IP) bool {
	return ip[0] == 0xfe && ip[1] == 0x80 &&
		ip[2] == 0 && ip[3] == 0 && ip[4] == 0 && ip[5] == 0 &&
		ip[6] == 0 && ip[7] == 0
}

// scopePosition returns the ordinal used to compare scopes: ULA > Global >
// LinkLocal > everything else, matching §3's preference list.
func scopePosition(s Scope) int {
	switch s {
	case ScopeUniqueLocal:
		return 3
	case ScopeGlobal:
		return 2
	case ScopeLinkLocal:
		return 1
	default:
		return 0
	}
}

// BestSourceAddress returns the address from addrs with the highest scope
// preference from §3: UniqueLocalAddress > Global > LinkLocal > any other.
// Ties are broken by numeric address ascending; BestSourceAddress returns
// the maximum under that total order. It returns nil for an empty slice.
func BestSourceAddress(addrs []net.IP) net.IP {
	var best net.IP
	bestPos := -1

	for _, a := range addrs {
		pos := scopePosition(ClassifyScope(a))
		if best == nil {
			best, bestPos = a, pos
			continue
		}

		switch {
		case pos > bestPos:
			best, bestPos = a, pos
		case pos == bestPos && bytes.Compare(a.To16(), best.To16()) > 0:
			best = a
		}
	}

	return best
}
