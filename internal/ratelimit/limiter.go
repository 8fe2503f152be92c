// Package ratelimit implements the bloom-of-token-buckets rate limiter of
// §4.9: 256 token buckets probed through two independent seeded hashes of
// the querying address, biasing denial against amplification without
// tracking any per-IP state.
package ratelimit

import (
	"net"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// numBuckets is the fixed bloom width.
const numBuckets = 256

// seed1 and seed2 key the two independent hash functions used to pick a
// query's pair of buckets. Arbitrary but fixed for the process lifetime:
// changing them between runs only reshuffles which IPs share a bucket.
const (
	seed1 uint64 = 0x5bd1e995c11f1a3b
	seed2 uint64 = 0x9e3779b97f4a7c15
)

// bucket is one token bucket, refilled continuously at Rate tokens per
// second up to Capacity. lastRefill is the last instant tokens was brought
// up to date.
type bucket struct {
	mu         sync.RWMutex
	tokens     float64
	lastRefill time.Time
}

// Limiter is the bloom-of-token-buckets limiter. A zero Limiter is not
// usable; construct one with New.
type Limiter struct {
	buckets  [numBuckets]*bucket
	capacity float64
	rate     float64
}

// New returns a Limiter whose buckets each hold up to capacity tokens and
// refill at ratePerSecond tokens per second. capacity should be at least
// the largest possible DNS reply in octets, per §4.9.
func New(capacity, ratePerSecond float64) *Limiter {
	l := &Limiter{capacity: capacity, rate: ratePerSecond}
	now := time.Now()
	for i := range l.buckets {
		l.buckets[i] = &bucket{tokens: capacity, lastRefill: now}
	}
	return l
}

// Cost is the amplification-biased cost of permitting a reply of replySize
// octets in answer to a query of querySize octets: max(0, 2*reply - query).
// Replies no larger than half the query are free; beyond that each reply
// octet costs two tokens, less the query size.
func Cost(querySize, replySize int) float64 {
	c := 2*replySize - querySize
	if c < 0 {
		return 0
	}
	return float64(c)
}

// Allow reports whether a reply of the given cost to ip may be sent. It
// probes bucket h1 = hash(seed1, ip) mod 256 first; if that bucket lacks
// sufficient tokens at decision time it probes h2 = hash(seed2, ip) mod 255
// (remapped to bucket 255 on collision with h1). The request is permitted
// iff either bucket has enough tokens; only the permitting bucket is
// depleted, per §4.9 and testable property 8.
func (l *Limiter) Allow(ip net.IP, cost float64) bool {
	h1, h2 := l.bucketsFor(ip)

	b1 := l.buckets[h1]
	if b1.tryDeplete(cost, l.capacity, l.rate) {
		return true
	}

	b2 := l.buckets[h2]
	return b2.tryDeplete(cost, l.capacity, l.rate)
}

// bucketsFor computes the (h1, h2) bucket indices for ip, applying the
// one-step collision fixup from §4.9.
func (l *Limiter) bucketsFor(ip net.IP) (h1, h2 int) {
	addr := ip.To16()

	h1 = int(hashSeeded(seed1, addr) % numBuckets)
	h2 = int(hashSeeded(seed2, addr) % (numBuckets - 1))
	if h2 == h1 {
		h2 = numBuckets - 1
	}
	return h1, h2
}

func hashSeeded(seed uint64, addr []byte) uint64 {
	d := xxhash.New()
	var seedBytes [8]byte
	for i := range seedBytes {
		seedBytes[i] = byte(seed >> (8 * i))
	}
	_, _ = d.Write(seedBytes[:])
	_, _ = d.Write(addr)
	return d.Sum64()
}

// tryDeplete probes the bucket read-only first; only if the peek suggests
// enough tokens are present does it take the write lock and re-check under
// exclusive access before depleting. The probe-then-commit split is an
// explicit accuracy/throughput trade-off permitted because concurrent
// depletion is commutative: over-depletion from a race is self-penalizing
// against the IP that caused it.
func (b *bucket) tryDeplete(cost, capacity, rate float64) bool {
	if !b.peek(cost, capacity, rate) {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(capacity, rate, time.Now())
	if b.tokens < cost {
		return false
	}
	b.tokens -= cost
	return true
}

// peek reports whether the bucket appears to hold at least cost tokens,
// without mutating any state.
func (b *bucket) peek(cost, capacity, rate float64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	elapsed := time.Since(b.lastRefill).Seconds()
	available := b.tokens + elapsed*rate
	if available > capacity {
		available = capacity
	}
	return available >= cost
}

// refillLocked brings tokens up to date as of now. Caller must hold b.mu
// for writing.
func (b *bucket) refillLocked(capacity, rate float64, now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * rate
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.lastRefill = now
}
