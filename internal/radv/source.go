package radv

import (
	"fmt"
	"net"

	"github.com/stappersg/erbium/internal/netinfo"
)

// SelectSourceAddress implements §4.3: enumerate the interface's IPv6
// prefixes and return the one with the highest scope preference. At least
// one link-local address is guaranteed on an IPv6-capable interface;
// its absence is treated as a programming error and returned as an error
// rather than panicking, so callers at the edge (e.g. an RS arriving on a
// still-initializing interface) can log and drop instead of crashing the
// service.
func SelectSourceAddress(iface netinfo.Interface) (net.IP, error) {
	var v6 []net.IP
	for _, p := range iface.Prefixes {
		ip := p.Addr.To16()
		if ip == nil || ip.To4() != nil {
			continue
		}
		v6 = append(v6, ip)
	}

	best := BestSourceAddress(v6)
	if best == nil {
		return nil, fmt.Errorf("radv: interface %s (index %d) has no IPv6 address", iface.Name, iface.Index)
	}

	return best, nil
}

// synthesizeInterfaceConfig builds the fallback InterfaceConfig described
// in §4.4 for an interface with no matching configuration block: one
// Prefix Information option per host-assigned address that also appears
// in the global address list, with the fixed default flags/lifetimes, and
// RDNSS/DNSSL left NotSpecified so the normal global-fallback rules still
// apply.
func synthesizeInterfaceConfig(iface netinfo.Interface, globalAddrs []net.IP) (ic InterfaceConfig, ok bool) {
	knownHost := make(map[string]bool, len(globalAddrs))
	for _, a := range globalAddrs {
		knownHost[a.String()] = true
	}

	for _, p := range iface.Prefixes {
		ip := p.Addr.To16()
		if ip == nil || ip.To4() != nil {
			continue
		}
		if !knownHost[ip.String()] {
			continue
		}

		ic.Prefixes = append(ic.Prefixes, PrefixConfig{
			Addr:       ip,
			PrefixLen:  uint8(p.PrefixLen),
			OnLink:     defaultUnconfiguredOnLink,
			Autonomous: defaultUnconfiguredAutonomous,
			Valid:      defaultUnconfiguredValid,
			Preferred:  defaultUnconfiguredPreferred,
		})
	}

	return ic, len(ic.Prefixes) > 0
}
