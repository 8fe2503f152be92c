package cookie_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stappersg/erbium/internal/cookie"
)

var (
	key1         = cookie.Key{1, 2, 3, 4, 5, 6, 7, 8}
	key2         = cookie.Key{8, 7, 6, 5, 4, 3, 2, 1}
	clientCookie = []byte{0xaa, 0xbb, 0xcc, 0xdd, 0x01, 0x02, 0x03, 0x04}
	localIP      = net.ParseIP("2001:db8::1")
	remoteIP     = net.ParseIP("2001:db8::2")
)

func TestCalculate_Deterministic(t *testing.T) {
	t.Parallel()

	a := cookie.Calculate(clientCookie, key1, localIP, remoteIP)
	b := cookie.Calculate(clientCookie, key1, localIP, remoteIP)
	assert.Equal(t, a, b)
	assert.Len(t, a, cookie.ServerCookieLen)
}

func TestCalculate_DependsOnEveryInput(t *testing.T) {
	t.Parallel()

	base := cookie.Calculate(clientCookie, key1, localIP, remoteIP)

	otherClient := cookie.Calculate([]byte{0, 0, 0, 0, 0, 0, 0, 0}, key1, localIP, remoteIP)
	otherLocal := cookie.Calculate(clientCookie, key1, net.ParseIP("2001:db8::9"), remoteIP)
	otherRemote := cookie.Calculate(clientCookie, key1, localIP, net.ParseIP("2001:db8::9"))
	otherKey := cookie.Calculate(clientCookie, key2, localIP, remoteIP)

	assert.NotEqual(t, base, otherClient)
	assert.NotEqual(t, base, otherLocal)
	assert.NotEqual(t, base, otherRemote)
	assert.NotEqual(t, base, otherKey)
}

func TestValidate_Missing(t *testing.T) {
	t.Parallel()

	assert.Equal(t, cookie.Missing, cookie.Validate(nil, nil, key1, key2, localIP, remoteIP))
	// A client cookie without a server half is present, so it is Bad, not
	// Missing.
	assert.Equal(t, cookie.Bad, cookie.Validate(clientCookie, nil, key1, key2, localIP, remoteIP))
	assert.Equal(t, cookie.Missing, cookie.Validate(nil, []byte("ignored"), key1, key2, localIP, remoteIP))
}

func TestValidate_GoodWithNewKey(t *testing.T) {
	t.Parallel()

	serverCookie := cookie.Calculate(clientCookie, key1, localIP, remoteIP)
	got := cookie.Validate(clientCookie, serverCookie, key1, key2, localIP, remoteIP)
	assert.Equal(t, cookie.Good, got)
}

func TestValidate_FallsBackToOldKey(t *testing.T) {
	t.Parallel()

	// serverCookie was minted under what is now the "old" key (key2), but
	// the rotator's "new" key (key1) is checked first and must fail before
	// falling back.
	serverCookie := cookie.Calculate(clientCookie, key2, localIP, remoteIP)
	got := cookie.Validate(clientCookie, serverCookie, key1, key2, localIP, remoteIP)
	assert.Equal(t, cookie.Good, got)
}

func TestValidate_BadWhenNeitherKeyMatches(t *testing.T) {
	t.Parallel()

	serverCookie := []byte("0123456789012345678901234567890123456789")[:cookie.ServerCookieLen]
	got := cookie.Validate(clientCookie, serverCookie, key1, key2, localIP, remoteIP)
	assert.Equal(t, cookie.Bad, got)
}
