// Package cache provides a small generic LRU cache with per-entry expiry.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

// LRUCache is a generic LRU cache with TTL support. Expired entries are
// dropped when read and before an insert would evict a live entry.
type LRUCache[K comparable, V any] struct {
	capacity int
	ttl      time.Duration
	entries  *lru.Cache[K, item[V]]
	mu       sync.Mutex // serializes Set and Cleanup
	now      func() time.Time
}

// NewLRUCache creates a cache holding at most capacity entries for ttl each.
func NewLRUCache[K comparable, V any](capacity int, ttl time.Duration) *LRUCache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[K, item[V]](capacity)
	return &LRUCache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		entries:  entries,
		now:      time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	var zero V
	it, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(it.expiresAt) {
		c.entries.Remove(key)
		return zero, false
	}
	return it.value, true
}

// Set adds or refreshes a value.
func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries.Len() >= c.capacity && !c.entries.Contains(key) {
		c.cleanupLocked()
	}
	c.entries.Add(key, item[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Delete removes a key from the cache.
func (c *LRUCache[K, V]) Delete(key K) {
	c.entries.Remove(key)
}

// Len returns the number of entries, expired or not.
func (c *LRUCache[K, V]) Len() int {
	return c.entries.Len()
}

// Cleanup removes expired entries and returns how many were removed.
func (c *LRUCache[K, V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupLocked()
}

func (c *LRUCache[K, V]) cleanupLocked() int {
	now := c.now()
	removed := 0
	for _, key := range c.entries.Keys() {
		if it, ok := c.entries.Peek(key); ok && now.After(it.expiresAt) {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}
