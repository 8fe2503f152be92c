package ratelimit_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stappersg/erbium/internal/ratelimit"
)

var ip = net.ParseIP("2001:db8::1")

func TestCost_SaturatesAtZero(t *testing.T) {
	t.Parallel()

	assert.Zero(t, ratelimit.Cost(100, 40))
	assert.Zero(t, ratelimit.Cost(100, 50))
	assert.Equal(t, float64(70), ratelimit.Cost(50, 60))
}

func TestAllow_DeniesOnceCapacityExhausted(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(100, 0)

	// The same IP probes the same pair of buckets every call, so the
	// first two requests each deplete one of the two buckets (up to the
	// 2x burst allowance from §9); only the third, with both buckets
	// below cost, is denied.
	require.True(t, l.Allow(ip, 60), "first request within capacity must be allowed")
	require.True(t, l.Allow(ip, 60), "second request may still be allowed via the other probed bucket")
	assert.False(t, l.Allow(ip, 60), "third request exceeding remaining tokens in both buckets must be denied")
}

func TestAllow_RefillsOverTime(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(10, 1000)

	require.True(t, l.Allow(ip, 10), "first request should deplete one of the two probed buckets")
	require.True(t, l.Allow(ip, 10), "second request should deplete the other probed bucket")
	assert.False(t, l.Allow(ip, 10), "immediate retry with both buckets empty should be denied")

	time.Sleep(50 * time.Millisecond)

	assert.True(t, l.Allow(ip, 10), "request after refill window should be allowed again")
}

// TestAllow_DifferentIPsUseIndependentBudget exercises property 8: distinct
// IPs are not forced to share a bucket's depletion history, beyond the
// negligible collision probability called out in §9.
func TestAllow_DifferentIPsUseIndependentBudget(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(100, 0)
	other := net.ParseIP("2001:db8::2")

	require.True(t, l.Allow(ip, 100))
	assert.True(t, l.Allow(other, 100), "an unrelated IP must not be denied by the first IP's depletion")
}

// TestAllow_AmplificationBound is a bounded simulation of property 7: over
// many identical oversized replies from one IP, the total permitted bytes
// converge toward the refill budget rather than growing with request
// count.
func TestAllow_AmplificationBound(t *testing.T) {
	t.Parallel()

	const capacity = 1000.0
	l := ratelimit.New(capacity, 0)

	cost := ratelimit.Cost(50, 525) // exactly capacity: each bucket can grant it once
	permitted := 0
	for i := 0; i < 1000; i++ {
		if l.Allow(ip, cost) {
			permitted++
		}
	}

	assert.LessOrEqual(t, permitted, 2, "with zero refill, at most the 2x burst across both probed buckets may be permitted")
}
