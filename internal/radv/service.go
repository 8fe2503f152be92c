// Package radv implements the IPv6 Router Advertisement engine: the
// solicited/unsolicited emitter pair in §4.4, built on top of the pure
// announcement builder in builder.go and the ICMPv6 codec in package ndp.
package radv

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"

	"github.com/stappersg/erbium/internal/metrics"
	"github.com/stappersg/erbium/internal/ndp"
	"github.com/stappersg/erbium/internal/netinfo"
)

// allRoutersMulticast and allNodesMulticast are the two well-known IPv6
// multicast groups this engine joins (ff02::2, to hear Router
// Solicitations) and sends to (ff02::1, for unsolicited RAs).
var (
	allRoutersMulticast = net.ParseIP("ff02::2")
	allNodesMulticast   = net.ParseIP("ff02::1")
)

// recvBufSize is the maximum ICMPv6 datagram this engine reads, matching
// §4.4's "recvmsg up to 65536 octets".
const recvBufSize = 65536

// Service is the RA engine: one raw ICMPv6 socket shared read-only by two
// long-lived goroutines (§5).
type Service struct {
	cfg      Config
	hostinfo netinfo.Provider
	metrics  *metrics.Registry
	log      *slog.Logger

	// rng is isolated per Service so tests can seed it deterministically.
	rng *rand.Rand
}

// NewService constructs the RA engine. cfg is consulted live on every
// build, so reloading it between calls to Run is safe so long as Run
// itself is not concurrently reloaded — reconfiguration is out of scope
// per the Non-goals in §1.
func NewService(cfg Config, hostinfo netinfo.Provider, m *metrics.Registry, log *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		hostinfo: hostinfo,
		metrics:  m,
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run opens the raw ICMPv6 socket, joins ff02::2 on every multicast
// interface, and runs the solicited and unsolicited loops until either
// returns. Per §7, the RA service is not restarted internally: whichever
// loop exits first (success or failure) ends Run.
func (s *Service) Run(ctx context.Context) (err error) {
	conn, err := icmp.ListenPacket("ip6:ipv6-icmp", "::")
	if err != nil {
		return fmt.Errorf("%w: %s", ErrListen, err)
	}
	defer conn.Close()

	p6 := conn.IPv6PacketConn()
	if err = p6.SetHopLimit(255); err != nil {
		return fmt.Errorf("%w: setting unicast hop limit: %s", ErrListen, err)
	}
	if err = p6.SetMulticastHopLimit(255); err != nil {
		return fmt.Errorf("%w: setting multicast hop limit: %s", ErrListen, err)
	}
	if err = p6.SetControlMessage(ipv6.FlagHopLimit|ipv6.FlagSrc|ipv6.FlagDst|ipv6.FlagInterface, true); err != nil {
		return fmt.Errorf("%w: enabling packet info: %s", ErrListen, err)
	}

	ifaces, err := s.hostinfo.Interfaces(ctx)
	if err != nil {
		return fmt.Errorf("%w: listing interfaces: %s", ErrListen, err)
	}

	for _, iface := range ifaces {
		if !iface.Multicast {
			continue
		}
		joinErr := p6.JoinGroup(&net.Interface{Index: iface.Index, Name: iface.Name},
			&net.UDPAddr{IP: allRoutersMulticast})
		if joinErr != nil {
			s.log.Warn("radv: joining ff02::2", "interface", iface.Name, "error", joinErr)
		}
	}

	done := make(chan error, 2)
	go func() { done <- s.solicitedLoop(ctx, p6) }()
	go func() { done <- s.unsolicitedLoop(ctx, p6) }()

	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// solicitedLoop implements the first half of §4.4: receive, count,
// parse, and respond to Router Solicitations. A recv error is fatal for
// the loop, per §7's RecvError.
func (s *Service) solicitedLoop(ctx context.Context, p6 *ipv6.PacketConn) error {
	buf := make([]byte, recvBufSize)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, cm, peer, err := p6.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("radv: recv: %w", err)
		}

		ifaceName := s.interfaceName(ctx, cm)
		s.metrics.RadvReceivedPackets.WithLabelValues(ifaceName).Inc()

		msg, err := ndp.ParseMessage(buf[:n])
		if err != nil {
			s.log.Debug("radv: dropping unparsable packet", "interface", ifaceName, "error", err)
			continue
		}

		rs, ok := msg.(ndp.RouterSolicit)
		if !ok {
			// RouterAdvert (our own, or a peer's) or Unknown: dropped
			// silently by this loop.
			continue
		}

		s.metrics.RadvSolicitations.WithLabelValues(ifaceName).Inc()
		s.handleSolicit(ctx, p6, cm, peer, ifaceName, rs)
	}
}

// handleSolicit builds and sends a response to a single Router
// Solicitation. Send failures are logged and are not fatal (§4.4).
func (s *Service) handleSolicit(
	ctx context.Context,
	p6 *ipv6.PacketConn,
	cm *ipv6.ControlMessage,
	peer net.Addr,
	ifaceName string,
	_ ndp.RouterSolicit,
) {
	if cm == nil {
		s.log.Warn("radv: solicitation had no control message, cannot determine receiving interface")
		return
	}

	iface, err := s.hostinfo.InterfaceByIndex(ctx, cm.IfIndex)
	if err != nil {
		s.log.Warn("radv: resolving receiving interface", "index", cm.IfIndex, "error", err)
		return
	}

	ra, err := s.buildForInterface(ctx, iface)
	if err != nil {
		if errors.Is(err, ErrUnconfiguredInterface) {
			return
		}
		s.log.Warn("radv: building solicited announcement", "interface", ifaceName, "error", err)
		return
	}

	dst := peer
	if dst == nil {
		dst = &net.UDPAddr{IP: allNodesMulticast, Zone: iface.Name}
	}

	if err = s.send(p6, ra, iface, dst); err != nil {
		s.log.Warn("radv: sending solicited announcement", "interface", ifaceName, "error", err)
		return
	}

	s.metrics.RadvSentPackets.WithLabelValues(ifaceName).Inc()
}

// unsolicitedLoop implements the second half of §4.4: sleep a uniformly
// random jitter interval, then send an RA to ff02::1 on every
// multicast-capable interface.
func (s *Service) unsolicitedLoop(ctx context.Context, p6 *ipv6.PacketConn) error {
	for {
		d := s.jitterInterval()

		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}

		ifaces, err := s.hostinfo.Interfaces(ctx)
		if err != nil {
			s.log.Warn("radv: listing interfaces for unsolicited RA", "error", err)
			continue
		}

		for _, iface := range ifaces {
			if !iface.Multicast {
				continue
			}
			s.sendUnsolicited(ctx, p6, iface)
		}
	}
}

// sendUnsolicited sends one unsolicited RA to ff02::1, scoped to iface.
// An interface with no usable configuration is skipped silently, per
// §4.4 and §7 ([ErrUnconfiguredInterface] is never user-visible).
func (s *Service) sendUnsolicited(ctx context.Context, p6 *ipv6.PacketConn, iface netinfo.Interface) {
	ra, err := s.buildForInterface(ctx, iface)
	if err != nil {
		if errors.Is(err, ErrUnconfiguredInterface) {
			return
		}
		s.log.Warn("radv: building unsolicited announcement", "interface", iface.Name, "error", err)
		return
	}

	dst := &net.UDPAddr{IP: allNodesMulticast, Zone: iface.Name}
	if err = s.send(p6, ra, iface, dst); err != nil {
		s.log.Warn("radv: sending unsolicited announcement", "interface", iface.Name, "error", err)
		return
	}

	s.metrics.RadvSentPackets.WithLabelValues(iface.Name).Inc()
}

// send serializes ra and writes it scoped to iface's index.
func (s *Service) send(p6 *ipv6.PacketConn, ra ndp.RouterAdvert, iface netinfo.Interface, dst net.Addr) error {
	data, err := ra.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling RA: %w", err)
	}

	cm := &ipv6.ControlMessage{HopLimit: 255, IfIndex: iface.Index}
	_, err = p6.WriteTo(data, cm, dst)
	return err
}

// buildForInterface resolves configuration for iface (matching block, or
// the §4.4 synthesized fallback), the source address, the default-route
// lifetime rule, and the MTU override, then calls the pure builder.
func (s *Service) buildForInterface(ctx context.Context, iface netinfo.Interface) (ndp.RouterAdvert, error) {
	ic, configured := s.cfg.Interfaces[iface.Name]
	if !configured {
		var ok bool
		ic, ok = synthesizeInterfaceConfig(iface, s.cfg.Addresses)
		if !ok {
			return ndp.RouterAdvert{}, ErrUnconfiguredInterface
		}
	}

	self6, err := SelectSourceAddress(iface)
	if err != nil {
		return ndp.RouterAdvert{}, fmt.Errorf("selecting source address: %w", err)
	}

	route, err := s.hostinfo.DefaultRouteIPv6(ctx)
	if err != nil {
		return ndp.RouterAdvert{}, fmt.Errorf("looking up default route: %w", err)
	}

	lifetime := SelectLifetime(ic.Lifetime, DefaultRouteInfo{Present: route.Present, IfIndex: route.IfIndex}, iface.Index)

	var ll net.HardwareAddr
	if iface.HardwareAddr.Kind == netinfo.LinkLayerEthernet {
		ll = iface.HardwareAddr.Ethernet
	}

	mtu := resolveMTU(ic.MTU, iface.MTU)

	ra := BuildAnnouncement(BuildParams{
		Global:    s.cfg,
		Interface: ic,
		LinkLayer: ll,
		MTU:       mtu,
		Self6:     self6,
		Lifetime:  lifetime,
	})

	return ra, nil
}

// resolveMTU mirrors the ConfigValue semantics used elsewhere in §4.2:
// DontSet omits the option, an explicit value is used verbatim, and
// NotSpecified falls back to the interface's actual MTU if it is usable.
func resolveMTU(cv ConfigValue[uint32], hostMTU int) *uint32 {
	if cv.IsDontSet() {
		return nil
	}
	if v, ok := cv.Value(); ok {
		return &v
	}
	if hostMTU <= 0 {
		return nil
	}
	v := uint32(hostMTU)
	return &v
}

// interfaceName best-efforts a human-readable interface name for metrics
// labels from a control message; it falls back to the numeric index if
// the interface can't be resolved (e.g. it disappeared between recv and
// lookup).
func (s *Service) interfaceName(ctx context.Context, cm *ipv6.ControlMessage) string {
	if cm == nil {
		return "unknown"
	}
	iface, err := s.hostinfo.InterfaceByIndex(ctx, cm.IfIndex)
	if err != nil {
		return fmt.Sprintf("if%d", cm.IfIndex)
	}
	return iface.Name
}

// jitterInterval returns a uniformly random duration in
// [MinRtrAdvInterval, MaxRtrAdvInterval) seconds, per §4.4.
func (s *Service) jitterInterval() time.Duration {
	span := MaxRtrAdvInterval - MinRtrAdvInterval
	jitter := s.rng.Intn(span)
	return time.Duration(MinRtrAdvInterval+jitter) * time.Second
}
