// Package ndp implements the wire codec for the subset of ICMPv6 Neighbor
// Discovery Protocol messages and options this project cares about: Router
// Solicitation, Router Advertisement, and the ND options RFC 4861/8106/8781/
// 8910 attach to a Router Advertisement.
//
// TODO(erbium): Replace with an existing implementation from a dependency,
// should one appear that covers RDNSS/DNSSL/PREF64/Captive-Portal parsing.
package ndp

import (
	"net"

	"github.com/AdguardTeam/golibs/errors"
)

// MessageType is an ICMPv6 message type byte.
type MessageType uint8

// Recognized ICMPv6 message types.  Everything else parses to [Unknown].
const (
	TypeRouterSolicit MessageType = 133
	TypeRouterAdvert  MessageType = 134
	TypeUnknown       MessageType = 0
)

// Errors returned by the codec.
const (
	ErrTooShort       errors.Error = "ndp: message too short"
	ErrZeroLenOption  errors.Error = "ndp: zero-length option"
	ErrTruncatedOpt   errors.Error = "ndp: option truncated"
	ErrBadOptionField errors.Error = "ndp: malformed option field"
)

// Message is any parsed ICMPv6 message this codec recognizes.
type Message interface {
	// Type reports the ICMPv6 message type.
	Type() MessageType
}

// Unknown is the distinguished result for an ICMPv6 message type this
// codec does not interpret.  Callers are expected to drop it silently.
type Unknown struct {
	RawType byte
}

// Type implements [Message].
func (Unknown) Type() MessageType { return TypeUnknown }

// RouterSolicit is a parsed ICMPv6 type-133 Router Solicitation.
type RouterSolicit struct {
	// SourceLLAddr is the solicitor's link-layer address, if the RS carried
	// a Source Link-Layer Address option.
	SourceLLAddr net.HardwareAddr
}

// Type implements [Message].
func (RouterSolicit) Type() MessageType { return TypeRouterSolicit }

// RouterAdvert is a parsed or about-to-be-serialized ICMPv6 type-134 Router
// Advertisement.  It is deliberately a plain data structure: serialization
// and construction are kept in separate files so that the pure announcement
// builder in package radv never has to touch wire bytes directly.
type RouterAdvert struct {
	CurHopLimit    uint8
	ManagedFlag    bool
	OtherFlag      bool
	RouterLifetime uint16 // seconds
	ReachableTime  uint32 // milliseconds
	RetransTimer   uint32 // milliseconds
	Options        []Option
}

// Type implements [Message].
func (RouterAdvert) Type() MessageType { return TypeRouterAdvert }

// OptionType is the one-octet ND option type field.
type OptionType uint8

// Recognized ND option types.
const (
	OptSourceLLAddr  OptionType = 1
	OptPrefixInfo    OptionType = 3
	OptMTU           OptionType = 5
	OptRDNSS         OptionType = 25
	OptDNSSL         OptionType = 31
	OptCaptivePortal OptionType = 37
	OptPREF64        OptionType = 38
)

// Option is any ND option this codec can parse and serialize.
type Option interface {
	// OptType reports the option's wire type.
	OptType() OptionType
}

// SourceLLAddrOption is the Source Link-Layer Address option (RFC 4861
// §4.6.1).
type SourceLLAddrOption struct {
	Addr net.HardwareAddr
}

// OptType implements [Option].
func (SourceLLAddrOption) OptType() OptionType { return OptSourceLLAddr }

// MTUOption is the MTU option (RFC 4861 §4.6.4).
type MTUOption struct {
	MTU uint32
}

// OptType implements [Option].
func (MTUOption) OptType() OptionType { return OptMTU }

// PrefixInfoOption is the Prefix Information option (RFC 4861 §4.6.2).
type PrefixInfoOption struct {
	PrefixLength      uint8
	OnLink            bool
	Autonomous        bool
	ValidLifetime     uint32 // seconds
	PreferredLifetime uint32 // seconds
	Prefix            net.IP // 16 bytes, only PrefixLength significant bits used
}

// OptType implements [Option].
func (PrefixInfoOption) OptType() OptionType { return OptPrefixInfo }

// RDNSSOption is the Recursive DNS Server option (RFC 8106 §5.1).
type RDNSSOption struct {
	Lifetime uint32 // seconds
	Servers  []net.IP
}

// OptType implements [Option].
func (RDNSSOption) OptType() OptionType { return OptRDNSS }

// DNSSLOption is the DNS Search List option (RFC 8106 §5.2).
type DNSSLOption struct {
	Lifetime uint32 // seconds
	Domains  []string
}

// OptType implements [Option].
func (DNSSLOption) OptType() OptionType { return OptDNSSL }

// CaptivePortalOption is the Captive-Portal Identification option (RFC
// 8910).
type CaptivePortalOption struct {
	URI string
}

// OptType implements [Option].
func (CaptivePortalOption) OptType() OptionType { return OptCaptivePortal }

// PREF64Option is the NAT64 PREF64 option (RFC 8781).
type PREF64Option struct {
	Lifetime   uint16 // seconds, truncated to a multiple of 8 on the wire
	PrefixLen  uint8  // one of 32, 40, 48, 56, 64, 96
	Prefix     net.IP // 16 bytes; only the leading PrefixLen bits are significant
}

// OptType implements [Option].
func (PREF64Option) OptType() OptionType { return OptPREF64 }

// pref64PLCByLen and pref64LenByPLC implement the PLC encoding table from
// RFC 8781 §4: 96->0, 64->1, 56->2, 48->3, 40->4, 32->5.
var pref64PLCByLen = map[uint8]uint16{
	96: 0,
	64: 1,
	56: 2,
	48: 3,
	40: 4,
	32: 5,
}

var pref64LenByPLC = map[uint16]uint8{
	0: 96,
	1: 64,
	2: 56,
	3: 48,
	4: 40,
	5: 32,
}
