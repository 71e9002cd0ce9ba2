package cache

import "time"

// Entry wraps a cached value with its creation time and lifetime.
type Entry[V any] struct {
	Value     V
	CreatedAt time.Time
	TTL       time.Duration
}

// Valid reports whether the entry is still live at now.
func (e Entry[V]) Valid(now time.Time) bool {
	return now.Sub(e.CreatedAt) < e.TTL
}
