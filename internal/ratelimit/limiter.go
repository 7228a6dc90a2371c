// Package ratelimit admits generation requests per client with one token
// bucket per key.
package ratelimit

import (
	"sync"
	"time"
)

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
	BurstSize         int
}

// Limiter keeps a token bucket per client key. Buckets that have refilled
// completely are forgotten by Sweep.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time

	allowed int64
	blocked int64
}

// NewLimiter creates a limiter. A RequestsPerMinute of zero or less disables
// limiting.
func NewLimiter(cfg Config) *Limiter {
	if cfg.BurstSize < 1 {
		cfg.BurstSize = 1
	}
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Enabled reports whether the limiter rejects anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.cfg.RequestsPerMinute > 0
}

// Allow admits one request for key. When it refuses, retryAfter says when
// the next request would be admitted.
func (l *Limiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	if !l.Enabled() {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = newBucket(float64(l.cfg.BurstSize), float64(l.cfg.RequestsPerMinute)/60, now)
		l.buckets[key] = b
	}
	ok, retryAfter = b.take(now)
	if ok {
		l.allowed++
	} else {
		l.blocked++
	}
	return ok, retryAfter
}

// Sweep drops buckets that are full again and returns how many were dropped.
func (l *Limiter) Sweep() int {
	if !l.Enabled() {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for key, b := range l.buckets {
		if b.full(now) {
			delete(l.buckets, key)
			n++
		}
	}
	return n
}

// Stats holds rate limiter statistics.
type Stats struct {
	Clients int
	Allowed int64
	Blocked int64
}

// Stats returns rate limiter statistics.
func (l *Limiter) Stats() Stats {
	if l == nil {
		return Stats{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Clients: len(l.buckets), Allowed: l.allowed, Blocked: l.blocked}
}
