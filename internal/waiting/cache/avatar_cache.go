package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	// DefaultAvatarBatchDelay is the debounce window before a photo batch is sent
	DefaultAvatarBatchDelay = 50 * time.Millisecond
	// PhotoBatchSize is the maximum number of photos per batch call
	PhotoBatchSize = 20

	photoFetchTimeout = 30 * time.Second
)

// PhotoFetcher fetches profile photos as data URLs.
// Users without a photo are absent from the result.
type PhotoFetcher interface {
	FetchPhotos(ctx context.Context, userIDs []string) (map[string]string, error)
}

type photoBatch struct {
	ids  []string
	done chan struct{}
}

// AvatarCache memoizes profile photos per user id and coalesces requests
// arriving within the debounce window into batch calls.
// Missing photos and failures are cached as "" so they are not retried.
type AvatarCache struct {
	fetcher PhotoFetcher
	delay   time.Duration

	mu       sync.Mutex
	photos   map[string]string
	pending  *photoBatch
	inflight map[string]*photoBatch
}

// NewAvatarCache creates a cache with the given debounce delay
func NewAvatarCache(fetcher PhotoFetcher, delay time.Duration) *AvatarCache {
	if delay <= 0 {
		delay = DefaultAvatarBatchDelay
	}
	return &AvatarCache{
		fetcher:  fetcher,
		delay:    delay,
		photos:   make(map[string]string),
		inflight: make(map[string]*photoBatch),
	}
}

// GetPhotoURL returns the data URL for userID, or "" when the user has no photo
func (c *AvatarCache) GetPhotoURL(ctx context.Context, userID string) string {
	return c.Prefetch(ctx, []string{userID})[userID]
}

// Prefetch loads photos for userIDs and returns the ones that exist
func (c *AvatarCache) Prefetch(ctx context.Context, userIDs []string) map[string]string {
	batches := make(map[*photoBatch]struct{})

	c.mu.Lock()
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := c.photos[id]; ok {
			continue
		}
		batches[c.enqueueLocked(id)] = struct{}{}
	}
	c.mu.Unlock()

	for b := range batches {
		select {
		case <-b.done:
		case <-ctx.Done():
			return c.collect(userIDs)
		}
	}
	return c.collect(userIDs)
}

// Invalidate clears all cached photos
func (c *AvatarCache) Invalidate() {
	c.mu.Lock()
	c.photos = make(map[string]string)
	c.mu.Unlock()
}

func (c *AvatarCache) collect(userIDs []string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if url := c.photos[id]; url != "" {
			out[id] = url
		}
	}
	return out
}

// enqueueLocked must be called with c.mu held
func (c *AvatarCache) enqueueLocked(id string) *photoBatch {
	if b, ok := c.inflight[id]; ok {
		return b
	}
	if c.pending == nil {
		c.pending = &photoBatch{done: make(chan struct{})}
		time.AfterFunc(c.delay, c.flush)
	}
	c.pending.ids = append(c.pending.ids, id)
	c.inflight[id] = c.pending
	return c.pending
}

func (c *AvatarCache) flush() {
	c.mu.Lock()
	b := c.pending
	c.pending = nil
	c.mu.Unlock()
	if b == nil {
		return
	}
	defer close(b.done)

	ctx, cancel := context.WithTimeout(context.Background(), photoFetchTimeout)
	defer cancel()

	for start := 0; start < len(b.ids); start += PhotoBatchSize {
		end := min(start+PhotoBatchSize, len(b.ids))
		chunk := b.ids[start:end]

		photos, err := c.fetcher.FetchPhotos(ctx, chunk)
		if err != nil {
			log.Printf("[AvatarCache] Photo batch of %d failed: %v", len(chunk), err)
		}

		c.mu.Lock()
		for _, id := range chunk {
			url := ""
			if err == nil {
				url = photos[id]
			}
			c.photos[id] = url
			delete(c.inflight, id)
		}
		c.mu.Unlock()
	}
}
