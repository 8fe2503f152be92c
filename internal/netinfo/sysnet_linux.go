//go:build linux

package netinfo

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"
)

// Linux rtnetlink constants needed for a minimal RTM_GETROUTE dump. Kept
// local rather than imported from a higher-level rtnetlink package, since
// mdlayher/netlink only provides the generic socket transport and leaves
// message bodies to the caller.
const (
	rtmGetRoute = 26

	afINET6 = 10

	rtaDST     = 1
	rtaOIF     = 4
	rtaGateway = 5

	rtTableMain = 254
)

// rtmsg mirrors Linux's struct rtmsg (12 bytes, all fields single-byte
// except the trailing flags).
type rtmsg struct {
	family   byte
	dstLen   byte
	srcLen   byte
	tos      byte
	table    byte
	protocol byte
	scope    byte
	rtType   byte
	flags    uint32
}

func (r rtmsg) marshal() []byte {
	b := make([]byte, 12)
	b[0] = r.family
	b[1] = r.dstLen
	b[2] = r.srcLen
	b[3] = r.tos
	b[4] = r.table
	b[5] = r.protocol
	b[6] = r.scope
	b[7] = r.rtType
	binary.LittleEndian.PutUint32(b[8:12], r.flags)
	return b
}

// platformDefaultRouteIPv6 dumps the IPv6 routing table over a raw
// rtnetlink socket and returns the first default route (destination
// length 0) found in the main table.
func platformDefaultRouteIPv6(ctx context.Context) (DefaultRoute, error) {
	conn, err := netlink.Dial(unix.NETLINK_ROUTE, nil)
	if err != nil {
		return DefaultRoute{}, fmt.Errorf("netinfo: dialing rtnetlink: %w", err)
	}
	defer conn.Close()

	req := netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(rtmGetRoute),
			Flags: netlink.Request | netlink.Dump,
		},
		Data: rtmsg{family: afINET6}.marshal(),
	}

	msgs, err := conn.Execute(req)
	if err != nil {
		return DefaultRoute{}, fmt.Errorf("netinfo: rtnetlink route dump: %w", err)
	}

	for _, m := range msgs {
		route, ok := parseDefaultRoute(m.Data)
		if ok {
			return route, nil
		}
	}

	return DefaultRoute{Present: false}, nil
}

// parseDefaultRoute interprets one RTM_NEWROUTE payload, returning ok=true
// only for a default route (dstLen == 0) in the main table that carries a
// gateway and outgoing interface.
func parseDefaultRoute(data []byte) (route DefaultRoute, ok bool) {
	if len(data) < 12 {
		return DefaultRoute{}, false
	}

	family := data[0]
	dstLen := data[1]
	table := data[4]
	if family != afINET6 || dstLen != 0 || table != rtTableMain {
		return DefaultRoute{}, false
	}

	attrs, err := netlink.UnmarshalAttributes(data[12:])
	if err != nil {
		return DefaultRoute{}, false
	}

	var gw net.IP
	var ifIndex int
	for _, a := range attrs {
		switch a.Type {
		case rtaGateway:
			if len(a.Data) == 16 {
				gw = net.IP(append([]byte(nil), a.Data...))
			}
		case rtaOIF:
			if len(a.Data) == 4 {
				ifIndex = int(binary.LittleEndian.Uint32(a.Data))
			}
		case rtaDST:
			// A default route must have no RTA_DST attribute; if present,
			// this isn't the route we're looking for.
			return DefaultRoute{}, false
		}
	}

	if gw == nil || ifIndex == 0 {
		return DefaultRoute{}, false
	}

	return DefaultRoute{Present: true, Gateway: gw, IfIndex: ifIndex}, true
}
