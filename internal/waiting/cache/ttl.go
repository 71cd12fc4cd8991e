package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"waiting-backend/internal/waiting/domain"

	"golang.org/x/sync/singleflight"
)

const fetchTimeout = 30 * time.Second

// TTLCache is a keyed cache whose entries expire after a fixed TTL
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[K]domain.CacheEntry[V]
	flight  singleflight.Group
}

// NewTTLCache creates a cache. A nil clock defaults to time.Now.
func NewTTLCache[K comparable, V any](ttl time.Duration, now func() time.Time) *TTLCache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &TTLCache[K, V]{
		ttl:     ttl,
		now:     now,
		entries: make(map[K]domain.CacheEntry[V]),
	}
}

// Get returns the value for key if it has not expired
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if !entry.Valid(c.now()) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && !current.Valid(c.now()) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return entry.Data, true
}

// Set stores value under key for one TTL
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.entries[key] = domain.NewCacheEntry(value, c.now(), c.ttl)
	c.mu.Unlock()
}

// GetOrFetch serves a live entry or calls fetch and caches its result.
// Concurrent misses on the same key share one fetch, which runs detached
// from any single caller's cancellation. Errors are returned uncached.
func (c *TTLCache[K, V]) GetOrFetch(ctx context.Context, key K, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	ch := c.flight.DoChan(fmt.Sprint(key), func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Invalidate removes one key
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll removes every entry
func (c *TTLCache[K, V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[K]domain.CacheEntry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
