package radv

import (
	"net"

	"github.com/stappersg/erbium/internal/ndp"
)

// BuildParams bundles every input the announcement builder needs, per
// §4.2: global config, interface config, optional link-layer address and
// MTU override, the chosen source address for this link, and the
// already-decided router lifetime.
type BuildParams struct {
	Global      Config
	Interface   InterfaceConfig
	LinkLayer   net.HardwareAddr // nil if unavailable or not Ethernet
	MTU         *uint32          // nil to omit the MTU option
	Self6       net.IP           // the link's chosen source address
	Lifetime    uint16           // seconds; already resolved by the caller, see SelectLifetime
}

// BuildAnnouncement is the pure function at the heart of the RA engine: it
// has no I/O, performs no suspension, and is fully determined by its
// inputs (§4.2, §8.1). Options are appended in the fixed rule order of
// §4.2 so the wire output is deterministic.
func BuildAnnouncement(p BuildParams) ndp.RouterAdvert {
	ra := ndp.RouterAdvert{
		CurHopLimit:    defaultHopLimit(p.Interface),
		RouterLifetime: p.Lifetime,
	}

	if managed, ok := p.Interface.Managed.Value(); ok {
		ra.ManagedFlag = managed
	}
	if other, ok := p.Interface.Other.Value(); ok {
		ra.OtherFlag = other
	}
	if reachable, ok := p.Interface.Reachable.Value(); ok {
		ra.ReachableTime = reachable
	}
	if retrans, ok := p.Interface.Retrans.Value(); ok {
		ra.RetransTimer = retrans
	}

	// Rule 1: Source Link-Layer Address, only when provided.
	if len(p.LinkLayer) == 6 {
		ra.Options = append(ra.Options, ndp.SourceLLAddrOption{Addr: p.LinkLayer})
	}

	// Rule 2: MTU, only when provided.
	if p.MTU != nil {
		ra.Options = append(ra.Options, ndp.MTUOption{MTU: *p.MTU})
	}

	// Rule 3: one Prefix Information option per configured prefix, flags
	// and lifetimes verbatim.
	for _, pc := range p.Interface.Prefixes {
		ra.Options = append(ra.Options, ndp.PrefixInfoOption{
			PrefixLength:      pc.PrefixLen,
			OnLink:            pc.OnLink,
			Autonomous:        pc.Autonomous,
			ValidLifetime:     pc.Valid,
			PreferredLifetime: pc.Preferred,
			Prefix:            pc.Addr,
		})
	}

	// Rule 4: RDNSS resolution.
	if servers, ok := resolveRDNSS(p.Interface.RDNSS, p.Global.DNSServers, p.Self6); ok {
		ra.Options = append(ra.Options, ndp.RDNSSOption{
			Lifetime: p.Interface.RDNSSLifetime,
			Servers:  servers,
		})
	}

	// Rule 5: DNSSL resolution, mirroring rule 4.
	if domains, ok := resolveDNSSL(p.Interface.DNSSL, p.Global.DNSSearch); ok {
		ra.Options = append(ra.Options, ndp.DNSSLOption{
			Lifetime: p.Interface.DNSSLLifetime,
			Domains:  domains,
		})
	}

	// Rule 6: PREF64, only when configured.
	if pref, ok := p.Interface.PREF64.Value(); ok {
		ra.Options = append(ra.Options, ndp.PREF64Option{
			Lifetime:  pref.Lifetime,
			PrefixLen: pref.PrefixLen,
			Prefix:    pref.Prefix,
		})
	}

	// Rule 7: Captive Portal; interface config wins over global, emitted
	// only when explicitly set.
	if uri, ok := resolveCaptivePortal(p.Interface.CaptivePortal, p.Global.CaptivePortal); ok {
		ra.Options = append(ra.Options, ndp.CaptivePortalOption{URI: uri})
	}

	return ra
}

// defaultHopLimit resolves the interface's hop-limit ConfigValue, falling
// back to 64 (the common IPv6 default current-hop-limit) when
// unspecified.
func defaultHopLimit(ic InterfaceConfig) uint8 {
	if hl, ok := ic.HopLimit.Value(); ok {
		return hl
	}
	return 64
}

// resolveRDNSS implements §4.2 rule 4: DontSet omits; Value(v) uses v
// verbatim; NotSpecified takes the IPv6 entries from the global
// dns_servers, substituting "::" with self6, and emits only if non-empty
// after substitution.
func resolveRDNSS(cv ConfigValue[[]net.IP], globalServers []net.IP, self6 net.IP) (servers []net.IP, ok bool) {
	if cv.IsDontSet() {
		return nil, false
	}
	if v, isVal := cv.Value(); isVal {
		return v, true
	}

	for _, s := range globalServers {
		if s.To4() != nil {
			continue
		}
		if s.Equal(net.IPv6unspecified) {
			servers = append(servers, self6)
			continue
		}
		servers = append(servers, s)
	}

	return servers, len(servers) > 0
}

// resolveDNSSL implements §4.2 rule 5, the DNSSL mirror of resolveRDNSS:
// DontSet omits, Value(v) uses v, NotSpecified falls back to the global
// dns_search list and emits only if non-empty.
func resolveDNSSL(cv ConfigValue[[]string], globalSearch []string) (domains []string, ok bool) {
	if cv.IsDontSet() {
		return nil, false
	}
	if v, isVal := cv.Value(); isVal {
		return v, true
	}

	return globalSearch, len(globalSearch) > 0
}

// resolveCaptivePortal implements §4.2 rule 7: the interface's value wins
// when explicit; otherwise the global captive_portal is used if
// non-empty. DontSet on the interface suppresses the option outright.
func resolveCaptivePortal(cv ConfigValue[string], global string) (uri string, ok bool) {
	if cv.IsDontSet() {
		return "", false
	}
	if v, isVal := cv.Value(); isVal {
		return v, v != ""
	}

	return global, global != ""
}

// SelectLifetime implements the §4.2 lifetime-selection rule: an explicit
// Value overrides unconditionally, DontSet forces 0, and NotSpecified
// resolves to 3*MAX_RTR_ADV_INTERVAL if a default IPv6 route exists on a
// different interface than ifIndex, or 0 otherwise.
func SelectLifetime(cv ConfigValue[uint16], route DefaultRouteInfo, ifIndex int) uint16 {
	if cv.IsDontSet() {
		return 0
	}
	if v, ok := cv.Value(); ok {
		return v
	}

	if route.Present && route.IfIndex != ifIndex {
		return 3 * MaxRtrAdvInterval
	}

	return 0
}

// DefaultRouteInfo is the subset of netinfo.DefaultRoute the lifetime rule
// needs; kept as its own tiny type so package radv does not have to
// import package netinfo just for this one computation, matching the
// collaborator boundary drawn in §6.
type DefaultRouteInfo struct {
	Present bool
	IfIndex int
}
