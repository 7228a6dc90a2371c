package ratelimit

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(cfg Config) (*Limiter, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiter(cfg)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiterBurstThenBlocks(t *testing.T) {
	l, _ := newTestLimiter(Config{RequestsPerMinute: 6, BurstSize: 2})

	ok, _ := l.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok)

	ok, retry := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.InDelta(t, float64(10*time.Second), float64(retry), float64(time.Millisecond))

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok, "keys are limited independently")

	stats := l.Stats()
	assert.Equal(t, 2, stats.Clients)
	assert.Equal(t, int64(3), stats.Allowed)
	assert.Equal(t, int64(1), stats.Blocked)
}

func TestLimiterRefills(t *testing.T) {
	l, now := newTestLimiter(Config{RequestsPerMinute: 60, BurstSize: 1})

	ok, _ := l.Allow("a")
	require.True(t, ok)
	ok, _ = l.Allow("a")
	require.False(t, ok)

	*now = now.Add(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(Config{})
	assert.False(t, l.Enabled())
	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("a")
		require.True(t, ok)
	}
	assert.Equal(t, 0, l.Stats().Clients)

	var nilLimiter *Limiter
	ok, _ := nilLimiter.Allow("a")
	assert.True(t, ok)
}

func TestLimiterSweep(t *testing.T) {
	l, now := newTestLimiter(Config{RequestsPerMinute: 60, BurstSize: 2})

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 0, l.Sweep())

	*now = now.Add(5 * time.Second)
	assert.Equal(t, 2, l.Sweep())
	assert.Equal(t, 0, l.Stats().Clients)
}

func TestBucketWithoutRefillNeverRecovers(t *testing.T) {
	start := time.Now()
	b := newBucket(1, 0, start)
	ok, _ := b.take(start)
	require.True(t, ok)

	ok, wait := b.take(start.Add(time.Hour))
	assert.False(t, ok)
	assert.Equal(t, time.Duration(math.MaxInt64), wait)
	assert.False(t, b.full(start.Add(time.Hour)))
}
