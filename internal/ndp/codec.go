package ndp

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/netutil"
)

// icmpv6 header layout: type(1) code(1) checksum(2).  The checksum is left
// zero on output; raw ICMPv6 sockets opened the way package radv opens them
// have the kernel compute and verify it via IPV6_CHECKSUM, exactly as the
// reference RA sender this is grounded on does.
const icmpHeaderLen = 4

// raBodyLen is the fixed portion of a Router Advertisement body, following
// the ICMPv6 header: CurHopLimit(1) Flags(1) RouterLifetime(2)
// ReachableTime(4) RetransTimer(4).
const raBodyLen = 12

// rsBodyLen is the fixed (reserved) portion of a Router Solicitation body.
const rsBodyLen = 4

// ParseMessage parses an ICMPv6 packet, dropping unknown option TLVs using
// their length field and returning [ErrZeroLenOption] on an option whose
// length field is zero, per RFC 4861's option-parsing rules.
func ParseMessage(b []byte) (Message, error) {
	if len(b) < icmpHeaderLen {
		return nil, ErrTooShort
	}

	switch MessageType(b[0]) {
	case TypeRouterSolicit:
		if len(b) < icmpHeaderLen+rsBodyLen {
			return nil, ErrTooShort
		}

		opts, err := parseOptions(b[icmpHeaderLen+rsBodyLen:])
		if err != nil {
			return nil, fmt.Errorf("parsing RS options: %w", err)
		}

		rs := RouterSolicit{}
		for _, o := range opts {
			if sla, ok := o.(SourceLLAddrOption); ok {
				rs.SourceLLAddr = sla.Addr
			}
		}

		return rs, nil
	case TypeRouterAdvert:
		if len(b) < icmpHeaderLen+raBodyLen {
			return nil, ErrTooShort
		}

		body := b[icmpHeaderLen:]
		flags := body[1]

		opts, err := parseOptions(b[icmpHeaderLen+raBodyLen:])
		if err != nil {
			return nil, fmt.Errorf("parsing RA options: %w", err)
		}

		return RouterAdvert{
			CurHopLimit:    body[0],
			ManagedFlag:    flags&0x80 != 0,
			OtherFlag:      flags&0x40 != 0,
			RouterLifetime: binary.BigEndian.Uint16(body[2:4]),
			ReachableTime:  binary.BigEndian.Uint32(body[4:8]),
			RetransTimer:   binary.BigEndian.Uint32(body[8:12]),
			Options:        opts,
		}, nil
	default:
		return Unknown{RawType: b[0]}, nil
	}
}

// Marshal serializes a Router Advertisement to its bit-exact wire form.
// Options are emitted in slice order, each padded to an 8-octet boundary.
func (ra RouterAdvert) Marshal() ([]byte, error) {
	optBytes, err := marshalOptions(ra.Options)
	if err != nil {
		return nil, fmt.Errorf("marshaling RA options: %w", err)
	}

	out := make([]byte, icmpHeaderLen+raBodyLen, icmpHeaderLen+raBodyLen+len(optBytes))
	out[0] = byte(TypeRouterAdvert)
	out[1] = 0 // code
	// out[2:4] checksum left zero, see icmpHeaderLen doc.

	body := out[icmpHeaderLen:]
	body[0] = ra.CurHopLimit
	var flags byte
	if ra.ManagedFlag {
		flags |= 0x80
	}
	if ra.OtherFlag {
		flags |= 0x40
	}
	body[1] = flags
	binary.BigEndian.PutUint16(body[2:4], ra.RouterLifetime)
	binary.BigEndian.PutUint32(body[4:8], ra.ReachableTime)
	binary.BigEndian.PutUint32(body[8:12], ra.RetransTimer)

	return append(out, optBytes...), nil
}

// parseOptions walks a sequence of 8-octet-aligned ND option TLVs.
// Unrecognized types are skipped using the length field (RFC 4861's
// forgiving-parse rule); a zero length field terminates
// parsing with [ErrZeroLenOption].
func parseOptions(b []byte) (opts []Option, err error) {
	for len(b) > 0 {
		if len(b) < 2 {
			return nil, ErrTruncatedOpt
		}

		typ := OptionType(b[0])
		lenUnits := b[1]
		if lenUnits == 0 {
			return nil, ErrZeroLenOption
		}

		total := int(lenUnits) * 8
		if total > len(b) {
			return nil, ErrTruncatedOpt
		}

		raw := b[:total]
		b = b[total:]

		opt, perr := parseOption(typ, raw)
		if perr != nil {
			return nil, perr
		}
		if opt != nil {
			opts = append(opts, opt)
		}
	}

	return opts, nil
}

// parseOption decodes the body of a single option TLV given its raw bytes
// (header included).  It returns a nil Option (and nil error) for a
// recognized-but-irrelevant or genuinely unknown type, which the caller
// silently drops.
func parseOption(typ OptionType, raw []byte) (Option, error) {
	body := raw[2:]

	switch typ {
	case OptSourceLLAddr:
		// Ethernet is the only link layer this implementation emits or
		// expects to receive; anything shorter than 6 octets is treated as
		// an unrecognized variant and dropped.
		if len(body) < 6 {
			return nil, nil
		}
		return SourceLLAddrOption{Addr: net.HardwareAddr(append([]byte(nil), body[:6]...))}, nil

	case OptMTU:
		if len(body) < 6 {
			return nil, ErrBadOptionField
		}
		return MTUOption{MTU: binary.BigEndian.Uint32(body[2:6])}, nil

	case OptPrefixInfo:
		if len(body) < 30 {
			return nil, ErrBadOptionField
		}
		flags := body[1]
		prefix := make(net.IP, 16)
		copy(prefix, body[14:30])
		return PrefixInfoOption{
			PrefixLength:      body[0],
			OnLink:            flags&0x80 != 0,
			Autonomous:        flags&0x40 != 0,
			ValidLifetime:     binary.BigEndian.Uint32(body[2:6]),
			PreferredLifetime: binary.BigEndian.Uint32(body[6:10]),
			Prefix:            prefix,
		}, nil

	case OptRDNSS:
		if len(body) < 6 || (len(body)-6)%16 != 0 {
			return nil, ErrBadOptionField
		}
		lifetime := binary.BigEndian.Uint32(body[2:6])
		n := (len(body) - 6) / 16
		servers := make([]net.IP, 0, n)
		for i := 0; i < n; i++ {
			ip := make(net.IP, 16)
			copy(ip, body[6+i*16:6+(i+1)*16])
			servers = append(servers, ip)
		}
		return RDNSSOption{Lifetime: lifetime, Servers: servers}, nil

	case OptDNSSL:
		if len(body) < 6 {
			return nil, ErrBadOptionField
		}
		lifetime := binary.BigEndian.Uint32(body[2:6])
		domains, err := decodeSearchList(body[6:])
		if err != nil {
			return nil, err
		}
		return DNSSLOption{Lifetime: lifetime, Domains: domains}, nil

	case OptCaptivePortal:
		// Strip trailing NUL padding added to reach the 8-octet boundary.
		uri := body
		for len(uri) > 0 && uri[len(uri)-1] == 0 {
			uri = uri[:len(uri)-1]
		}
		return CaptivePortalOption{URI: string(uri)}, nil

	case OptPREF64:
		if len(body) < 14 {
			return nil, ErrBadOptionField
		}
		scaledAndPLC := binary.BigEndian.Uint16(body[0:2])
		plc := scaledAndPLC & 0x7
		scaled := scaledAndPLC &^ 0x7
		prefixLen, ok := pref64LenByPLC[plc]
		if !ok {
			return nil, fmt.Errorf("%w: unknown PREF64 PLC %d", ErrBadOptionField, plc)
		}
		prefix := make(net.IP, 16)
		copy(prefix, body[2:14])
		return PREF64Option{Lifetime: scaled, PrefixLen: prefixLen, Prefix: prefix}, nil

	default:
		return nil, nil
	}
}

// marshalOptions serializes opts in order, padding each to an 8-octet
// boundary as required by RFC 4861 §4.6.
func marshalOptions(opts []Option) ([]byte, error) {
	var out []byte
	for _, o := range opts {
		b, err := marshalOption(o)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func marshalOption(o Option) ([]byte, error) {
	switch opt := o.(type) {
	case SourceLLAddrOption:
		if err := netutil.ValidateMAC(opt.Addr); err != nil {
			return nil, fmt.Errorf("source link-layer address: %w", err)
		}
		return padTo8(append([]byte{byte(OptSourceLLAddr), 0}, []byte(opt.Addr)...)), nil

	case MTUOption:
		b := make([]byte, 8)
		b[0] = byte(OptMTU)
		b[1] = 1
		binary.BigEndian.PutUint32(b[4:8], opt.MTU)
		return b, nil

	case PrefixInfoOption:
		b := make([]byte, 32)
		b[0] = byte(OptPrefixInfo)
		b[1] = 4
		b[2] = opt.PrefixLength
		var flags byte
		if opt.OnLink {
			flags |= 0x80
		}
		if opt.Autonomous {
			flags |= 0x40
		}
		b[3] = flags
		binary.BigEndian.PutUint32(b[4:8], opt.ValidLifetime)
		binary.BigEndian.PutUint32(b[8:12], opt.PreferredLifetime)
		// b[12:16] reserved2, left zero.
		prefix := opt.Prefix.To16()
		if prefix == nil {
			return nil, errors.Error("ndp: prefix option address is not a valid IPv6 address")
		}
		copy(b[16:32], prefix)
		return b, nil

	case RDNSSOption:
		n := len(opt.Servers)
		b := make([]byte, 8+n*16)
		b[0] = byte(OptRDNSS)
		b[1] = byte(1 + 2*n)
		binary.BigEndian.PutUint32(b[4:8], opt.Lifetime)
		for i, srv := range opt.Servers {
			ip := srv.To16()
			if ip == nil {
				return nil, fmt.Errorf("ndp: RDNSS server %d is not a valid IPv6 address", i)
			}
			copy(b[8+i*16:8+(i+1)*16], ip)
		}
		return b, nil

	case DNSSLOption:
		encoded := encodeSearchList(opt.Domains)
		header := make([]byte, 8)
		body := padTo8Body(encoded, 8)
		header[0] = byte(OptDNSSL)
		header[1] = byte((8 + len(body)) / 8)
		binary.BigEndian.PutUint32(header[4:8], opt.Lifetime)
		return append(header, body...), nil

	case CaptivePortalOption:
		return padTo8(append([]byte{byte(OptCaptivePortal), 0}, []byte(opt.URI)...)), nil

	case PREF64Option:
		plc, ok := pref64PLCByLen[opt.PrefixLen]
		if !ok {
			return nil, fmt.Errorf("ndp: unsupported PREF64 prefix length /%d", opt.PrefixLen)
		}
		b := make([]byte, 16)
		b[0] = byte(OptPREF64)
		b[1] = 2
		scaled := opt.Lifetime &^ 0x7
		binary.BigEndian.PutUint16(b[2:4], scaled|plc)
		prefix := opt.Prefix.To16()
		if prefix == nil {
			return nil, errors.Error("ndp: PREF64 prefix is not a valid IPv6 address")
		}
		copy(b[4:16], prefix[:12])
		return b, nil

	default:
		return nil, fmt.Errorf("ndp: unsupported option type %T", o)
	}
}

// padTo8 pads buf with NUL bytes up to the next 8-octet boundary and fills
// in the length-in-8-octet-units field at offset 1.
func padTo8(buf []byte) []byte {
	rem := len(buf) % 8
	if rem != 0 {
		buf = append(buf, make([]byte, 8-rem)...)
	}
	buf[1] = byte(len(buf) / 8)
	return buf
}

// padTo8Body pads buf (not including a type/length header of headerLen
// bytes that the caller prepends separately) so that headerLen+len(buf) is
// a multiple of 8.
func padTo8Body(buf []byte, headerLen int) []byte {
	total := headerLen + len(buf)
	rem := total % 8
	if rem != 0 {
		buf = append(buf, make([]byte, 8-rem)...)
	}
	return buf
}

// encodeSearchList encodes a list of domain names using the DNS label
// format of RFC 1035 §3.1, concatenated without compression, as required
// for the DNSSL option by RFC 8106 §5.2.
func encodeSearchList(domains []string) []byte {
	var out []byte
	for _, d := range domains {
		out = append(out, encodeDomainLabels(d)...)
	}
	return out
}

func encodeDomainLabels(domain string) []byte {
	var out []byte
	start := 0
	for i := 0; i <= len(domain); i++ {
		if i == len(domain) || domain[i] == '.' {
			if i > start {
				label := domain[start:i]
				out = append(out, byte(len(label)))
				out = append(out, label...)
			}
			start = i + 1
		}
	}
	return append(out, 0)
}

// decodeSearchList is the inverse of encodeSearchList.
func decodeSearchList(b []byte) (domains []string, err error) {
	for len(b) > 0 {
		var labels []string
		for {
			if len(b) == 0 {
				return nil, fmt.Errorf("%w: truncated DNSSL domain", ErrBadOptionField)
			}
			n := int(b[0])
			b = b[1:]
			if n == 0 {
				break
			}
			if n > len(b) {
				return nil, fmt.Errorf("%w: truncated DNSSL label", ErrBadOptionField)
			}
			labels = append(labels, string(b[:n]))
			b = b[n:]
		}
		if len(labels) == 0 {
			// Trailing NUL padding reached; stop.
			break
		}
		domain := labels[0]
		for _, l := range labels[1:] {
			domain += "." + l
		}
		domains = append(domains, domain)
	}
	return domains, nil
}
