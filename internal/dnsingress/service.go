// Package dnsingress implements the DNS ingress engine of §4.5/§4.6: a
// UDP and a TCP listener on the same dual-stack address, each spawning
// one task per inbound datagram/connection to resolve, synthesize a
// reply, and send it back with the source address pinned to whichever
// local address the query actually arrived on.
package dnsingress

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/google/uuid"
	"github.com/miekg/dns"
	"golang.org/x/net/ipv6"

	"github.com/stappersg/erbium/internal/acl"
	"github.com/stappersg/erbium/internal/cookie"
	"github.com/stappersg/erbium/internal/dnsedns"
	"github.com/stappersg/erbium/internal/metrics"
	"github.com/stappersg/erbium/internal/ratelimit"
	"github.com/stappersg/erbium/internal/resolver"
)

// recvBufSize is the maximum UDP datagram this engine reads.
const recvBufSize = 65536

// defaultBufSize is the client capacity assumed for a query that carries
// no EDNS OPT record.
const defaultBufSize = 512

// Service is the DNS ingress engine: one UDP and one TCP listener on the
// same address, per §4.5/§4.6.
type Service struct {
	addr string

	resolve resolver.Handler
	checker acl.Checker
	limiter *ratelimit.Limiter
	cookies *cookie.Rotator

	m   *metrics.Registry
	log *slog.Logger
}

// NewService constructs the DNS ingress engine. limiter may be nil, which
// disables rate limiting entirely (every REFUSED reply is sent).
func NewService(
	addr string,
	resolve resolver.Handler,
	checker acl.Checker,
	limiter *ratelimit.Limiter,
	cookies *cookie.Rotator,
	m *metrics.Registry,
	log *slog.Logger,
) *Service {
	return &Service{
		addr:    addr,
		resolve: resolve,
		checker: checker,
		limiter: limiter,
		cookies: cookies,
		m:       m,
		log:     log,
	}
}

// Run opens the UDP and TCP listeners and runs their accept/receive loops
// until either exits. Per §7, a fatal error in either loop ends Run; the
// orchestrator (internal/daemon) decides whether to restart the whole
// service.
func (s *Service) Run(ctx context.Context) (err error) {
	udpConn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: udp %s: %s", ErrListen, s.addr, err)
	}
	defer udpConn.Close()

	p := ipv6.NewPacketConn(udpConn)
	// On a dual-stack [::]:53 socket on Linux, IPV6_RECVPKTINFO reports
	// the destination address for both native IPv6 and v4-mapped
	// traffic, so a single ipv6.PacketConn suffices here.
	if cmErr := p.SetControlMessage(ipv6.FlagDst|ipv6.FlagInterface, true); cmErr != nil {
		return fmt.Errorf("%w: udp %s: enabling packet info: %s", ErrListen, s.addr, cmErr)
	}

	tcpLn, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: tcp %s: %s", ErrListen, s.addr, err)
	}
	defer tcpLn.Close()

	done := make(chan error, 2)
	go func() { done <- s.udpLoop(ctx, p) }()
	go func() { done <- s.tcpLoop(ctx, tcpLn) }()

	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// udpLoop implements §4.5: recv, parse, spawn a task per datagram.
func (s *Service) udpLoop(ctx context.Context, p *ipv6.PacketConn) error {
	buf := make([]byte, recvBufSize)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, cm, peer, err := p.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("dnsingress: udp recv: %w", err)
		}

		query := make([]byte, n)
		copy(query, buf[:n])

		localIP := localIPFromControl(cm)
		remote, ok := udpAddrPort(peer)
		if !ok {
			continue
		}

		go s.handleUDP(ctx, p, query, localIP, remote)
	}
}

// handleUDP resolves and replies to a single UDP datagram. Parse
// failures are dropped and counted; everything else (ACL, resolution,
// rate limiting) is decided by respond.
func (s *Service) handleUDP(ctx context.Context, p *ipv6.PacketConn, raw []byte, localIP netip.Addr, remote netip.AddrPort) {
	start := time.Now()
	log := s.traceLogger()

	query := new(dns.Msg)
	if err := query.Unpack(raw); err != nil {
		s.m.DNSInQueryResult.WithLabelValues("UDP", "parse fail").Inc()
		s.m.DNSInQueryDropped.Inc()
		return
	}

	remoteIP := remote.Addr()
	reply, send, result := s.respond(ctx, resolver.ProtocolUDP, query, len(raw), localIP, remote)
	s.m.DNSInQueryLatency.WithLabelValues("UDP").Observe(time.Since(start).Seconds())
	s.m.DNSInQueryResult.WithLabelValues("UDP", result).Inc()
	log.Debug("dnsingress: udp query handled", "remote", remote, "result", result)

	if !send {
		s.m.DNSInQueryDropped.Inc()
		return
	}

	out, err := reply.Pack()
	if err != nil {
		log.Warn("dnsingress: packing udp reply", "error", err)
		s.m.DNSInQueryResult.WithLabelValues("UDP", "send fail").Inc()
		return
	}

	dst := &net.UDPAddr{IP: remoteIP.AsSlice(), Port: int(remote.Port())}
	cm := &ipv6.ControlMessage{Src: localIP.AsSlice()}
	if _, err = p.WriteTo(out, cm, dst); err != nil {
		log.Warn("dnsingress: sending udp reply", "error", err)
		s.m.DNSInQueryResult.WithLabelValues("UDP", "send fail").Inc()
	}
}

// traceLogger returns s.log (or the no-op default logger) annotated with
// a fresh per-exchange trace ID, so every log line emitted while
// handling one query/reply exchange can be correlated without threading
// an explicit parameter through every call.
func (s *Service) traceLogger() *slog.Logger {
	log := s.log
	if log == nil {
		log = slog.Default()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return log
	}
	return log.With("trace", id.String())
}

// tcpLoop implements §4.6: accept, spawn a task per connection.
func (s *Service) tcpLoop(ctx context.Context, ln net.Listener) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("dnsingress: tcp accept: %w", err)
		}

		go s.handleTCP(ctx, conn)
	}
}

// handleTCP services exactly one query/reply exchange on conn, per §4.6's
// single-shot model, then closes the connection.
func (s *Service) handleTCP(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	start := time.Now()
	log := s.traceLogger()

	raw, err := readTCPQuery(conn)
	if err != nil {
		log.Debug("dnsingress: tcp read_exact failed", "error", err)
		s.m.DNSInQueryResult.WithLabelValues("TCP", "parse fail").Inc()
		return
	}

	query := new(dns.Msg)
	if err = query.Unpack(raw); err != nil {
		s.m.DNSInQueryResult.WithLabelValues("TCP", "parse fail").Inc()
		return
	}

	localIP, remote := connAddrs(conn)

	reply, _, result := s.respond(ctx, resolver.ProtocolTCP, query, len(raw), localIP, remote)
	s.m.DNSInQueryLatency.WithLabelValues("TCP").Observe(time.Since(start).Seconds())
	s.m.DNSInQueryResult.WithLabelValues("TCP", result).Inc()
	log.Debug("dnsingress: tcp query handled", "remote", remote, "result", result)

	out, err := reply.Pack()
	if err != nil {
		log.Warn("dnsingress: packing tcp reply", "error", err)
		s.m.DNSInQueryResult.WithLabelValues("TCP", "send fail").Inc()
		return
	}

	framed := make([]byte, 2+len(out))
	framed[0] = byte(len(out) >> 8)
	framed[1] = byte(len(out))
	copy(framed[2:], out)

	if _, err = conn.Write(framed); err != nil {
		log.Warn("dnsingress: writing tcp reply", "error", err)
		s.m.DNSInQueryResult.WithLabelValues("TCP", "send fail").Inc()
	}
}

// readTCPQuery reads the 2-octet big-endian length prefix and exactly
// that many octets after it, per §4.6's read_exact semantics: a short
// read is a fatal error for this connection, never a partial reply.
func readTCPQuery(conn net.Conn) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("reading length prefix: %w", err)
	}

	n := int(lenBuf[0])<<8 | int(lenBuf[1])
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, fmt.Errorf("reading %d-octet query: %w", n, err)
	}

	return buf, nil
}

// respond is the socket-agnostic core of §4.7: validate the cookie,
// consult the ACL, resolve the query, synthesize a reply, and decide
// whether the rate limiter permits sending it. It returns the reply to
// serialize, whether it should be sent at all, and the
// dns_in_query_result label to record.
func (s *Service) respond(
	ctx context.Context,
	proto resolver.Protocol,
	query *dns.Msg,
	inSize int,
	localIP netip.Addr,
	remote netip.AddrPort,
) (reply *dns.Msg, send bool, result string) {
	remoteIP := remote.Addr()
	localNetIP := net.IP(localIP.AsSlice())
	remoteNetIP := net.IP(remoteIP.AsSlice())

	cookieStatus := s.validateCookie(query, localNetIP, remoteNetIP)

	if allow, reason := s.checker.Check(remoteIP); !allow {
		reply = dnsedns.BuildErrorReply(query, dnsedns.ErrACLRefused, reason)
		return s.gate(proto, query, reply, inSize, remoteIP, cookieStatus, dnsedns.ErrACLRefused)
	}

	msg := &resolver.DNSMessage{
		Query:      query,
		InSize:     inSize,
		LocalIP:    localIP,
		RemoteAddr: remote,
		Protocol:   proto,
	}

	upstream, err := s.resolve.Handle(ctx, msg)
	if err != nil {
		kind, detail := classifyResolveError(err)
		reply = dnsedns.BuildErrorReply(query, kind, detail)
		return s.gate(proto, query, reply, inSize, remoteIP, cookieStatus, kind)
	}

	newKey, oldKey := s.cookies.Keys()
	reply = dnsedns.BuildSuccessReply(query, upstream, localNetIP, remoteNetIP, newKey, oldKey)
	reply.Truncate(effectiveSize(query))

	return reply, true, dns.RcodeToString[reply.Rcode]
}

// gate applies §4.9's rate-limiter decision to an error reply: only
// REFUSED replies not validated by a good cookie are subject to the
// limiter, and only on UDP.
func (s *Service) gate(
	proto resolver.Protocol,
	query, reply *dns.Msg,
	inSize int,
	remoteIP netip.Addr,
	cookieStatus cookie.Status,
	kind dnsedns.ErrorKind,
) (*dns.Msg, bool, string) {
	reply.Truncate(effectiveSize(query))
	result := dnsedns.ResultLabel(reply.Rcode, kind, true)

	if reply.Rcode != dns.RcodeRefused || proto != resolver.ProtocolUDP || cookieStatus == cookie.Good {
		return reply, true, result
	}

	if s.limiter == nil {
		return reply, true, result
	}

	out, err := reply.Pack()
	if err != nil {
		return reply, true, result
	}

	cost := ratelimit.Cost(inSize, len(out))
	if !s.limiter.Allow(net.IP(remoteIP.AsSlice()), cost) {
		return reply, false, result
	}

	return reply, true, result
}

// validateCookie extracts a client-presented COOKIE option, if any, and
// validates it against the rotator's current key pair.
func (s *Service) validateCookie(query *dns.Msg, localIP, remoteIP net.IP) cookie.Status {
	opt := query.IsEdns0()
	if opt == nil {
		return cookie.Missing
	}

	for _, o := range opt.Option {
		c, ok := o.(*dns.EDNS0_COOKIE)
		if !ok {
			continue
		}

		raw, err := hex.DecodeString(c.Cookie)
		if err != nil || len(raw) < cookie.ClientCookieLen {
			return cookie.Missing
		}

		clientCookie := raw[:cookie.ClientCookieLen]
		var serverCookie []byte
		if len(raw) > cookie.ClientCookieLen {
			serverCookie = raw[cookie.ClientCookieLen:]
		}

		newKey, oldKey := s.cookies.Keys()
		return cookie.Validate(clientCookie, serverCookie, newKey, oldKey, localIP, remoteIP)
	}

	return cookie.Missing
}

// classifyResolveError maps a resolver error onto the §4.7 error table.
func classifyResolveError(err error) (dnsedns.ErrorKind, string) {
	switch {
	case errors.Is(err, resolver.ErrNotAuthoritative):
		return dnsedns.ErrNotAuthoritative, "Not Authoritative"
	case errors.Is(err, resolver.ErrTimeout):
		return dnsedns.ErrUpstreamTimeout, "Timed out talking to upstream server"
	default:
		return dnsedns.ErrUpstreamIO, err.Error()
	}
}

// effectiveSize returns the truncation ceiling for a reply: the client's
// advertised EDNS bufsize, floored at 512 octets (the pre-EDNS default),
// per §4.6.
func effectiveSize(query *dns.Msg) int {
	if opt := query.IsEdns0(); opt != nil {
		if sz := int(opt.UDPSize()); sz > defaultBufSize {
			return sz
		}
	}
	return defaultBufSize
}

func localIPFromControl(cm *ipv6.ControlMessage) netip.Addr {
	if cm == nil || cm.Dst == nil {
		return netip.IPv6Unspecified()
	}
	addr, ok := netip.AddrFromSlice(cm.Dst)
	if !ok {
		return netip.IPv6Unspecified()
	}
	return addr.Unmap()
}

func udpAddrPort(a net.Addr) (netip.AddrPort, bool) {
	u, ok := a.(*net.UDPAddr)
	if !ok {
		return netip.AddrPort{}, false
	}
	ip, ok := netip.AddrFromSlice(u.IP)
	if !ok {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(ip.Unmap(), uint16(u.Port)), true
}

func connAddrs(conn net.Conn) (localIP netip.Addr, remote netip.AddrPort) {
	if a, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		if ip, ok2 := netip.AddrFromSlice(a.IP); ok2 {
			localIP = ip.Unmap()
		}
	}
	if a, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		if ip, ok2 := netip.AddrFromSlice(a.IP); ok2 {
			remote = netip.AddrPortFrom(ip.Unmap(), uint16(a.Port))
		}
	}
	return localIP, remote
}
