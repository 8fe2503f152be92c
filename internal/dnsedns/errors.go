package dnsedns

import "github.com/miekg/dns"

// ErrorKind enumerates the reply conditions of the §4.7 error table.
type ErrorKind int

// Recognized error conditions, each bound to a fixed RCODE and Extended
// DNS Error code.
const (
	ErrACLRefused ErrorKind = iota
	ErrPolicyDenied
	ErrNotAuthoritative
	ErrUpstreamTimeout
	ErrUpstreamIO
	ErrUpstreamConnect
	ErrUpstreamParse
	ErrInternal
)

type errorSpec struct {
	rcode int
	ede   uint16
	text  func(detail string) string
}

func identity(detail string) string { return detail }

func fixedText(s string) func(string) string {
	return func(string) string { return s }
}

var errorTable = map[ErrorKind]errorSpec{
	ErrACLRefused:       {dns.RcodeRefused, dns.ExtendedErrorCodeProhibited, identity},
	ErrPolicyDenied:     {dns.RcodeRefused, dns.ExtendedErrorCodeProhibited, identity},
	ErrNotAuthoritative: {dns.RcodeRefused, dns.ExtendedErrorCodeNotAuthoritative, fixedText("Not Authoritative")},
	ErrUpstreamTimeout:  {dns.RcodeServerFailure, dns.ExtendedErrorCodeNoReachableAuthority, fixedText("Timed out talking to upstream server")},
	ErrUpstreamIO:       {dns.RcodeServerFailure, dns.ExtendedErrorCodeNetworkError, identity},
	ErrUpstreamConnect:  {dns.RcodeServerFailure, dns.ExtendedErrorCodeNetworkError, identity},
	ErrUpstreamParse:    {dns.RcodeServerFailure, dns.ExtendedErrorCodeNetworkError, identity},
	ErrInternal:         {dns.RcodeServerFailure, dns.ExtendedErrorCodeOther, fixedText("Internal Error")},
}

// BuildErrorReply synthesizes the §4.7 error reply for query: RCODE and
// Extended DNS Error are fixed by kind; detail fills the EDE text for the
// conditions that carry a caller-supplied or error-derived string.
func BuildErrorReply(query *dns.Msg, kind ErrorKind, detail string) *dns.Msg {
	spec, ok := errorTable[kind]
	if !ok {
		spec = errorTable[ErrInternal]
	}

	reply := new(dns.Msg)
	reply.SetRcode(query, spec.rcode)
	reply.RecursionDesired = false

	opt := reply.SetEdns0(replyBufSize, false)
	opt.Option = append(opt.Option, &dns.EDNS0_EDE{
		InfoCode:  spec.ede,
		ExtraText: spec.text(detail),
	})

	return reply
}

// ResultLabel formats the dns_in_query_result{result} metric value for
// rcode, appending the Extended DNS Error name in parentheses when kind
// carries one (every ErrorKind here does).
func ResultLabel(rcode int, kind ErrorKind, hasError bool) string {
	name := dns.RcodeToString[rcode]
	if !hasError {
		return name
	}
	return name + " (" + edeNames[errorTable[kind].ede] + ")"
}

var edeNames = map[uint16]string{
	dns.ExtendedErrorCodeProhibited:          "PROHIBITED",
	dns.ExtendedErrorCodeNotAuthoritative:    "NOT_AUTHORITATIVE",
	dns.ExtendedErrorCodeNoReachableAuthority: "NO_REACHABLE_AUTHORITY",
	dns.ExtendedErrorCodeNetworkError:        "NETWORK_ERROR",
	dns.ExtendedErrorCodeOther:               "OTHER",
}
