package domain

import "time"

// CacheEntry wraps cached data with its validity window
type CacheEntry[T any] struct {
	Data      T
	CachedAt  time.Time
	ExpiresAt time.Time
}

// NewCacheEntry creates an entry valid for ttl from now
func NewCacheEntry[T any](data T, now time.Time, ttl time.Duration) CacheEntry[T] {
	return CacheEntry[T]{Data: data, CachedAt: now, ExpiresAt: now.Add(ttl)}
}

// Valid reports whether the entry can still be served
func (e CacheEntry[T]) Valid(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}
