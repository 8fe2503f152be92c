package dnsedns_test

import (
	"encoding/hex"
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stappersg/erbium/internal/cookie"
	"github.com/stappersg/erbium/internal/dnsedns"
)

var (
	localIP  = net.ParseIP("2001:db8::1")
	remoteIP = net.ParseIP("2001:db8::2")
	key      = cookie.Key{1, 2, 3, 4, 5, 6, 7, 8}
)

func newQuery(t *testing.T) *dns.Msg {
	t.Helper()
	q := new(dns.Msg)
	q.SetQuestion("example.com.", dns.TypeA)
	q.Id = 1234
	return q
}

// TestBuildSuccessReply_S4 is end-to-end scenario S4: a query with NSID
// and no COOKIE gets NSID echoed as the ASCII local_ip, bufsize=4096,
// qr=1, rd=0.
func TestBuildSuccessReply_S4(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	o := q.SetEdns0(4096, false)
	o.Option = append(o.Option, &dns.EDNS0_NSID{})

	upstream := new(dns.Msg)
	upstream.SetReply(q)
	upstream.Rcode = dns.RcodeSuccess

	reply := dnsedns.BuildSuccessReply(q, upstream, localIP, remoteIP, key, key)

	assert.Equal(t, q.Id, reply.Id)
	assert.True(t, reply.Response)
	assert.False(t, reply.RecursionDesired)
	assert.Equal(t, dns.RcodeSuccess, reply.Rcode)

	opt := reply.IsEdns0()
	require.NotNil(t, opt)
	assert.Equal(t, uint16(4096), opt.UDPSize())

	var nsid *dns.EDNS0_NSID
	for _, o := range opt.Option {
		if n, ok := o.(*dns.EDNS0_NSID); ok {
			nsid = n
		}
	}
	require.NotNil(t, nsid, "expected NSID option to be echoed")

	raw, err := hex.DecodeString(nsid.Nsid)
	require.NoError(t, err)
	assert.Equal(t, localIP.String(), string(raw))
}

func TestBuildSuccessReply_EchoesCookie(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	clientCookie := []byte{0xaa, 0xbb, 0xcc, 0xdd, 0x01, 0x02, 0x03, 0x04}
	o := q.SetEdns0(4096, false)
	o.Option = append(o.Option, &dns.EDNS0_COOKIE{Cookie: hex.EncodeToString(clientCookie)})

	upstream := new(dns.Msg)
	upstream.SetReply(q)

	reply := dnsedns.BuildSuccessReply(q, upstream, localIP, remoteIP, key, key)

	opt := reply.IsEdns0()
	require.NotNil(t, opt)

	var got *dns.EDNS0_COOKIE
	for _, o := range opt.Option {
		if c, ok := o.(*dns.EDNS0_COOKIE); ok {
			got = c
		}
	}
	require.NotNil(t, got)

	raw, err := hex.DecodeString(got.Cookie)
	require.NoError(t, err)
	require.Len(t, raw, cookie.ClientCookieLen+cookie.ServerCookieLen)
	assert.Equal(t, clientCookie, raw[:cookie.ClientCookieLen])

	wantServer := cookie.Calculate(clientCookie, key, localIP, remoteIP)
	assert.Equal(t, wantServer, raw[cookie.ClientCookieLen:])
}

func TestBuildSuccessReply_NameserverCopiesAnswer(t *testing.T) {
	t.Parallel()

	q := newQuery(t)
	upstream := new(dns.Msg)
	upstream.SetReply(q)
	upstream.Answer = []dns.RR{mustRR(t, "example.com. 300 IN A 192.0.2.1")}
	upstream.Ns = []dns.RR{mustRR(t, "example.com. 300 IN NS ns1.example.com.")}

	reply := dnsedns.BuildSuccessReply(q, upstream, localIP, remoteIP, key, key)

	require.Len(t, reply.Ns, 1)
	assert.Equal(t, reply.Answer[0].String(), reply.Ns[0].String())
}

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

func TestBuildErrorReply_Table(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind      dnsedns.ErrorKind
		wantRcode int
	}{
		{dnsedns.ErrACLRefused, dns.RcodeRefused},
		{dnsedns.ErrPolicyDenied, dns.RcodeRefused},
		{dnsedns.ErrNotAuthoritative, dns.RcodeRefused},
		{dnsedns.ErrUpstreamTimeout, dns.RcodeServerFailure},
		{dnsedns.ErrUpstreamIO, dns.RcodeServerFailure},
		{dnsedns.ErrUpstreamConnect, dns.RcodeServerFailure},
		{dnsedns.ErrUpstreamParse, dns.RcodeServerFailure},
		{dnsedns.ErrInternal, dns.RcodeServerFailure},
	}

	q := newQuery(t)
	for _, tc := range cases {
		reply := dnsedns.BuildErrorReply(q, tc.kind, "detail")
		assert.Equal(t, tc.wantRcode, reply.Rcode)
		assert.False(t, reply.RecursionDesired)

		opt := reply.IsEdns0()
		require.NotNil(t, opt)
		require.Len(t, opt.Option, 1)
		_, ok := opt.Option[0].(*dns.EDNS0_EDE)
		assert.True(t, ok)
	}
}
