package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TTL is a capacity-bounded LRU whose entries also expire after a fixed
// lifetime. Expired entries read as absent and are dropped on access.
type TTL[K comparable, V any] struct {
	entries *lru.Cache[K, Entry[V]]
	ttl     time.Duration
	clock   Clock
}

// NewTTL builds a cache holding at most size entries, each valid for ttl.
func NewTTL[K comparable, V any](size int, ttl time.Duration, clock Clock) (*TTL[K, V], error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	entries, err := lru.New[K, Entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTL[K, V]{entries: entries, ttl: ttl, clock: OrSystem(clock)}, nil
}

// Get returns the value for key when present and not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	ent, ok := c.entries.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if !ent.Valid(c.clock.Now()) {
		c.entries.Remove(key)
		var zero V
		return zero, false
	}
	return ent.Value, true
}

// Put stores value under key, stamped with the current time. The least
// recently used entry is evicted when the cache is full.
func (c *TTL[K, V]) Put(key K, value V) {
	c.entries.Add(key, Entry[V]{Value: value, CreatedAt: c.clock.Now(), TTL: c.ttl})
}

// PutAt stores value with an explicit creation time, for entries promoted from
// a slower tier that must keep their original age. Entries already expired
// are not stored.
func (c *TTL[K, V]) PutAt(key K, value V, createdAt time.Time) bool {
	ent := Entry[V]{Value: value, CreatedAt: createdAt, TTL: c.ttl}
	if !ent.Valid(c.clock.Now()) {
		return false
	}
	c.entries.Add(key, ent)
	return true
}

// Invalidate removes key; the next Get misses.
func (c *TTL[K, V]) Invalidate(key K) {
	c.entries.Remove(key)
}

// Len counts stored entries, expired ones included until they are touched.
func (c *TTL[K, V]) Len() int {
	return c.entries.Len()
}

// Purge drops every entry.
func (c *TTL[K, V]) Purge() {
	c.entries.Purge()
}
