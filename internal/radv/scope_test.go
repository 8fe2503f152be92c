package radv_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stappersg/erbium/internal/radv"
)

func TestClassifyScope(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		ip   string
		want radv.Scope
	}{
		{"unique local", "fd00::1", radv.ScopeUniqueLocal},
		{"unique local high bit", "fc00::1", radv.ScopeUniqueLocal},
		{"strict link local", "fe80::1", radv.ScopeLinkLocal},
		{"global", "2001:db8::1", radv.ScopeGlobal},
		{"loopback", "::1", radv.ScopeOther},
		{"unspecified", "::", radv.ScopeOther},
		{"multicast", "ff02::1", radv.ScopeOther},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, radv.ClassifyScope(net.ParseIP(tc.ip)))
		})
	}
}

func TestBestSourceAddress_PreferenceOrder(t *testing.T) {
	t.Parallel()

	addrs := []net.IP{
		net.ParseIP("fe80::1"),
		net.ParseIP("2001:db8::1"),
		net.ParseIP("fd00::1"),
	}

	got := radv.BestSourceAddress(addrs)
	assert.Equal(t, net.ParseIP("fd00::1"), got, "ULA must outrank global and link-local")
}

func TestBestSourceAddress_OrderIndependent(t *testing.T) {
	t.Parallel()

	a := net.ParseIP("2001:db8::1")
	b := net.ParseIP("2001:db8::2")
	c := net.ParseIP("fe80::1")

	got1 := radv.BestSourceAddress([]net.IP{a, b, c})
	got2 := radv.BestSourceAddress([]net.IP{c, b, a})
	got3 := radv.BestSourceAddress([]net.IP{b, c, a})

	assert.Equal(t, got1, got2)
	assert.Equal(t, got1, got3)
	assert.Equal(t, net.ParseIP("2001:db8::2"), got1, "ties among globals break by numeric ascending, max wins")
}

func TestBestSourceAddress_Empty(t *testing.T) {
	t.Parallel()
	assert.Nil(t, radv.BestSourceAddress(nil))
}
