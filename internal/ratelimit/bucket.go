package ratelimit

import (
	"math"
	"time"
)

// bucket is a token bucket refilled lazily from the time of its last use.
// It is not safe for concurrent use; Limiter serializes access.
type bucket struct {
	tokens   float64
	capacity float64
	perSec   float64
	last     time.Time
}

func newBucket(capacity, perSec float64, now time.Time) *bucket {
	return &bucket{tokens: capacity, capacity: capacity, perSec: perSec, last: now}
}

func (b *bucket) refill(now time.Time) {
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.perSec)
	}
	b.last = now
}

// take removes one token, or reports how long until one is available.
func (b *bucket) take(now time.Time) (bool, time.Duration) {
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.perSec <= 0 {
		return false, time.Duration(math.MaxInt64)
	}
	wait := (1 - b.tokens) / b.perSec
	return false, time.Duration(wait * float64(time.Second))
}

func (b *bucket) full(now time.Time) bool {
	b.refill(now)
	return b.tokens >= b.capacity
}
