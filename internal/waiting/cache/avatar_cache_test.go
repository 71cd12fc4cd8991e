package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePhotos struct {
	mu      sync.Mutex
	photos  map[string]string
	err     error
	batches [][]string
}

func (f *fakePhotos) FetchPhotos(_ context.Context, ids []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string)
	for _, id := range ids {
		if p, ok := f.photos[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakePhotos) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func TestAvatarRequestsWithinWindowShareOneBatch(t *testing.T) {
	fetcher := &fakePhotos{photos: map[string]string{
		"a": "data:image/jpeg;base64,QQ==",
		"b": "data:image/jpeg;base64,Qg==",
	}}
	c := NewAvatarCache(fetcher, 50*time.Millisecond)

	var wg sync.WaitGroup
	results := make([]string, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = c.GetPhotoURL(context.Background(), "a")
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		results[1] = c.GetPhotoURL(context.Background(), "b")
	}()
	wg.Wait()

	assert.Equal(t, "data:image/jpeg;base64,QQ==", results[0])
	assert.Equal(t, "data:image/jpeg;base64,Qg==", results[1])
	require.Equal(t, 1, fetcher.batchCount())
	assert.ElementsMatch(t, []string{"a", "b"}, fetcher.batches[0])
}

func TestAvatarMissingPhotoIsCached(t *testing.T) {
	fetcher := &fakePhotos{photos: map[string]string{}}
	c := NewAvatarCache(fetcher, time.Millisecond)

	assert.Empty(t, c.GetPhotoURL(context.Background(), "nophoto"))
	assert.Empty(t, c.GetPhotoURL(context.Background(), "nophoto"))
	assert.Equal(t, 1, fetcher.batchCount())
}

func TestAvatarFailureIsCachedAsMissing(t *testing.T) {
	fetcher := &fakePhotos{err: errors.New("throttled")}
	c := NewAvatarCache(fetcher, time.Millisecond)

	got := c.Prefetch(context.Background(), []string{"a", "b"})
	assert.Empty(t, got)
	_ = c.Prefetch(context.Background(), []string{"a", "b"})
	assert.Equal(t, 1, fetcher.batchCount())

	c.Invalidate()
	_ = c.Prefetch(context.Background(), []string{"a"})
	assert.Equal(t, 2, fetcher.batchCount())
}

func TestAvatarPrefetchChunksByTwenty(t *testing.T) {
	fetcher := &fakePhotos{photos: map[string]string{}}
	c := NewAvatarCache(fetcher, time.Millisecond)

	ids := make([]string, 45)
	for i := range ids {
		ids[i] = string(rune('A' + i))
	}
	_ = c.Prefetch(context.Background(), ids)

	require.Equal(t, 3, fetcher.batchCount())
	assert.Len(t, fetcher.batches[0], 20)
	assert.Len(t, fetcher.batches[1], 20)
	assert.Len(t, fetcher.batches[2], 5)
}
