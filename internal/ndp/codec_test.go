package ndp_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stappersg/erbium/internal/ndp"
)

func TestRoundTrip_Options(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		opt  ndp.Option
	}{
		{
			name: "source ll addr",
			opt:  ndp.SourceLLAddrOption{Addr: net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}},
		},
		{
			name: "mtu",
			opt:  ndp.MTUOption{MTU: 1500},
		},
		{
			name: "prefix info",
			opt: ndp.PrefixInfoOption{
				PrefixLength:      64,
				OnLink:            true,
				Autonomous:        true,
				ValidLifetime:     3600,
				PreferredLifetime: 1800,
				Prefix:            net.ParseIP("2001:db8::"),
			},
		},
		{
			name: "rdnss single",
			opt: ndp.RDNSSOption{
				Lifetime: 3600,
				Servers:  []net.IP{net.ParseIP("2001:db8::53")},
			},
		},
		{
			name: "rdnss multi",
			opt: ndp.RDNSSOption{
				Lifetime: 3600,
				Servers:  []net.IP{net.ParseIP("2001:db8::53"), net.ParseIP("2001:db8::54")},
			},
		},
		{
			name: "dnssl single",
			opt: ndp.DNSSLOption{
				Lifetime: 3600,
				Domains:  []string{"example.com"},
			},
		},
		{
			name: "dnssl multi",
			opt: ndp.DNSSLOption{
				Lifetime: 7200,
				Domains:  []string{"example.com", "internal.example.net"},
			},
		},
		{
			name: "captive portal",
			opt:  ndp.CaptivePortalOption{URI: "https://example.com/portal"},
		},
		{
			name: "pref64",
			opt: ndp.PREF64Option{
				Lifetime:  120,
				PrefixLen: 96,
				Prefix:    net.ParseIP("64:ff9b::"),
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ra := ndp.RouterAdvert{
				CurHopLimit:    64,
				RouterLifetime: 1800,
				Options:        []ndp.Option{tc.opt},
			}

			wire, err := ra.Marshal()
			require.NoError(t, err)
			assert.Zero(t, len(wire)%8, "every ND option must be 8-octet aligned")

			parsed, err := ndp.ParseMessage(wire)
			require.NoError(t, err)

			got, ok := parsed.(ndp.RouterAdvert)
			require.True(t, ok)
			require.Len(t, got.Options, 1)
			assert.Equal(t, tc.opt, got.Options[0])
		})
	}
}

func TestParseMessage_UnknownTypeDropsSilently(t *testing.T) {
	t.Parallel()

	msg, err := ndp.ParseMessage([]byte{200, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, ndp.TypeUnknown, msg.Type())
}

func TestParseMessage_ZeroLengthOptionErrors(t *testing.T) {
	t.Parallel()

	// RA header (16 bytes) followed by a zero-length option TLV.
	b := make([]byte, 16+2)
	b[0] = byte(ndp.TypeRouterAdvert)
	b[16] = byte(ndp.OptMTU)
	b[17] = 0 // zero length

	_, err := ndp.ParseMessage(b)
	assert.ErrorIs(t, err, ndp.ErrZeroLenOption)
}

func TestParseMessage_UnknownOptionSkippedByLength(t *testing.T) {
	t.Parallel()

	ra := ndp.RouterAdvert{CurHopLimit: 64}
	wire, err := ra.Marshal()
	require.NoError(t, err)

	// Append an 8-octet unknown option (type 99) that should be skipped.
	unknown := []byte{99, 1, 0, 0, 0, 0, 0, 0}
	wire = append(wire, unknown...)

	// Append a recognized MTU option after it, to prove parsing resumes
	// correctly past the skipped TLV.
	mtu := ndp.RouterAdvert{Options: []ndp.Option{ndp.MTUOption{MTU: 9000}}}
	mtuWire, err := mtu.Marshal()
	require.NoError(t, err)
	wire = append(wire, mtuWire[16:]...)

	parsed, err := ndp.ParseMessage(wire)
	require.NoError(t, err)

	got := parsed.(ndp.RouterAdvert)
	require.Len(t, got.Options, 1)
	assert.Equal(t, ndp.MTUOption{MTU: 9000}, got.Options[0])
}

func TestParseMessage_RouterSolicitWithSourceLL(t *testing.T) {
	t.Parallel()

	b := make([]byte, 8)
	b[0] = byte(ndp.TypeRouterSolicit)
	lla := []byte{0x1, 0x1, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	b = append(b, lla...)

	parsed, err := ndp.ParseMessage(b)
	require.NoError(t, err)

	rs, ok := parsed.(ndp.RouterSolicit)
	require.True(t, ok)
	assert.Equal(t, net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, rs.SourceLLAddr)
}
