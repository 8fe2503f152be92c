// Package dnsedns synthesizes DNS replies per §4.7: a success reply that
// echoes NSID and DNS COOKIE options the client requested, and an error
// reply carrying an Extended DNS Error (RFC 8914) for every refusal or
// upstream failure condition this core recognizes.
package dnsedns

import (
	"encoding/hex"
	"net"

	"github.com/miekg/dns"

	"github.com/stappersg/erbium/internal/cookie"
)

// replyBufSize is the EDNS bufsize this core always advertises on its own
// replies, per §4.7.
const replyBufSize = 4096

// BuildSuccessReply synthesizes the success reply for query given the
// already-resolved upstream answer. It copies the query's QID and
// question section, forces rd=false/qr=true/opcode=QUERY, clamps the
// EDNS version to 0, and copies tc/aa/cd/ad/ra/rcode and the
// answer/additional sections from upstream.
//
// The reply's NAMESERVER (Ns) section is populated with a copy of the
// ANSWER section rather than upstream's authority section. This
// wire-compatibility quirk is preserved deliberately from the reference
// implementation; see the design notes for why it is kept rather than
// fixed.
func BuildSuccessReply(query, upstream *dns.Msg, localIP, remoteIP net.IP, newKey, oldKey cookie.Key) *dns.Msg {
	reply := new(dns.Msg)
	reply.SetReply(query)
	reply.Opcode = dns.OpcodeQuery
	reply.RecursionDesired = false

	reply.Truncated = upstream.Truncated
	reply.Authoritative = upstream.Authoritative
	reply.CheckingDisabled = upstream.CheckingDisabled
	reply.AuthenticatedData = upstream.AuthenticatedData
	reply.RecursionAvailable = upstream.RecursionAvailable
	reply.Rcode = upstream.Rcode

	answer := copyRRs(upstream.Answer)
	reply.Answer = answer
	reply.Ns = copyRRs(answer)
	reply.Extra = copyRRs(stripOPT(upstream.Extra))

	opt := reply.SetEdns0(replyBufSize, false)
	echoClientOptions(opt, query, localIP, remoteIP, newKey, oldKey)

	return reply
}

// echoClientOptions appends the NSID/COOKIE options the client's query
// requested onto opt, per §4.7.
func echoClientOptions(opt *dns.OPT, query *dns.Msg, localIP, remoteIP net.IP, newKey, oldKey cookie.Key) {
	clientOPT := query.IsEdns0()
	if clientOPT == nil {
		return
	}

	for _, o := range clientOPT.Option {
		switch e := o.(type) {
		case *dns.EDNS0_NSID:
			opt.Option = append(opt.Option, &dns.EDNS0_NSID{
				Nsid: hex.EncodeToString([]byte(localIP.String())),
			})
		case *dns.EDNS0_COOKIE:
			if echoed := echoCookie(e, localIP, remoteIP, newKey, oldKey); echoed != nil {
				opt.Option = append(opt.Option, echoed)
			}
		}
	}
}

// echoCookie builds the reply COOKIE option: the client's client-cookie
// half unchanged, and a freshly computed server-cookie half bound to
// (client-cookie, local_ip, remote_ip) under the current key. A
// malformed client cookie is dropped rather than echoed.
func echoCookie(client *dns.EDNS0_COOKIE, localIP, remoteIP net.IP, newKey, _ cookie.Key) *dns.EDNS0_COOKIE {
	raw, err := hex.DecodeString(client.Cookie)
	if err != nil || len(raw) < cookie.ClientCookieLen {
		return nil
	}

	clientCookie := raw[:cookie.ClientCookieLen]
	serverCookie := cookie.Calculate(clientCookie, newKey, localIP, remoteIP)

	return &dns.EDNS0_COOKIE{
		Cookie: hex.EncodeToString(append(append([]byte{}, clientCookie...), serverCookie...)),
	}
}

// stripOPT removes any OPT pseudo-records from rrs, so upstream's own
// EDNS options are never copied into a reply that builds its own OPT via
// SetEdns0.
func stripOPT(rrs []dns.RR) []dns.RR {
	out := make([]dns.RR, 0, len(rrs))
	for _, rr := range rrs {
		if rr.Header().Rrtype != dns.TypeOPT {
			out = append(out, rr)
		}
	}
	return out
}

func copyRRs(rrs []dns.RR) []dns.RR {
	if len(rrs) == 0 {
		return nil
	}
	out := make([]dns.RR, len(rrs))
	for i, rr := range rrs {
		out[i] = dns.Copy(rr)
	}
	return out
}
