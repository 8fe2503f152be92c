package netinfo

import (
	"context"
	"fmt"
	"net"
)

// SysProvider is the default [Provider], backed by the standard library's
// interface enumeration plus a platform-specific default-route lookup
// (see sysnet_linux.go / sysnet_others.go).
type SysProvider struct {
	// defaultRouteIPv6 is the platform's default-route lookup
	// (platformDefaultRouteIPv6, chosen at build time).
	defaultRouteIPv6 func(ctx context.Context) (DefaultRoute, error)
}

// NewSysProvider constructs the host-backed [Provider].
func NewSysProvider() *SysProvider {
	return &SysProvider{defaultRouteIPv6: platformDefaultRouteIPv6}
}

// Interfaces implements [Provider].
func (p *SysProvider) Interfaces(_ context.Context) (out []Interface, err error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("netinfo: listing interfaces: %w", err)
	}

	out = make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		out = append(out, interfaceFromNet(iface))
	}

	return out, nil
}

// InterfaceByIndex implements [Provider].
func (p *SysProvider) InterfaceByIndex(_ context.Context, ifIndex int) (info Interface, err error) {
	iface, err := net.InterfaceByIndex(ifIndex)
	if err != nil {
		return Interface{}, fmt.Errorf("%w: %s", ErrNoSuchInterface, err)
	}

	return interfaceFromNet(*iface), nil
}

// DefaultRouteIPv6 implements [Provider].
func (p *SysProvider) DefaultRouteIPv6(ctx context.Context) (DefaultRoute, error) {
	return p.defaultRouteIPv6(ctx)
}

func interfaceFromNet(iface net.Interface) Interface {
	info := Interface{
		Index:     iface.Index,
		Name:      iface.Name,
		Multicast: iface.Flags&net.FlagMulticast != 0,
		MTU:       iface.MTU,
	}

	if len(iface.HardwareAddr) == 6 {
		info.HardwareAddr = LinkLayerAddr{
			Kind:     LinkLayerEthernet,
			Ethernet: iface.HardwareAddr,
		}
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return info
	}

	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ones, _ := ipnet.Mask.Size()
		info.Prefixes = append(info.Prefixes, Prefix{Addr: ipnet.IP, PrefixLen: ones})
	}

	return info
}
