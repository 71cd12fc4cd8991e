package cache

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"waiting-backend/internal/waiting/domain"
)

const (
	// LookupBatchSize is the maximum number of emails resolved per batch call
	LookupBatchSize = 20

	lookupTimeout = 30 * time.Second
)

// UserLookup resolves org email addresses to user ids.
// A lookup that finds no user returns "" without error.
type UserLookup interface {
	LookupUser(ctx context.Context, email string) (string, error)
	// LookupUsers resolves at most LookupBatchSize emails; absent keys are unresolved.
	LookupUsers(ctx context.Context, emails []string) (map[string]string, error)
}

// IdentityResolver maps sender emails to directory user ids.
// Unresolvable emails, external ones and lookup failures are cached as "".
// A lookup cut short by a cancelled or timed-out context is not cached.
type IdentityResolver struct {
	lookup    UserLookup
	orgDomain string

	mu       sync.RWMutex
	ids      map[string]string
	inflight map[string]*lookupCall
}

// lookupCall is one pending resolution shared by every caller asking for its key
type lookupCall struct {
	done chan struct{}
	id   string
}

// NewIdentityResolver creates a resolver. The org domain is taken from the
// current user's email once, here.
func NewIdentityResolver(lookup UserLookup, currentUserEmail string) *IdentityResolver {
	return &IdentityResolver{
		lookup:    lookup,
		orgDomain: domain.EmailDomain(currentUserEmail),
		ids:       make(map[string]string),
		inflight:  make(map[string]*lookupCall),
	}
}

// OrgDomain returns the domain considered internal
func (r *IdentityResolver) OrgDomain() string {
	return r.orgDomain
}

// IsExternal reports whether email is outside the org domain
func (r *IdentityResolver) IsExternal(email string) bool {
	d := domain.EmailDomain(email)
	return r.orgDomain != "" && d != "" && d != r.orgDomain
}

// Resolve returns the user id for email. Concurrent calls for the same
// email, from Resolve or ResolveMany, share a single lookup.
func (r *IdentityResolver) Resolve(ctx context.Context, email string) (string, bool) {
	key := normalizeEmail(email)
	if key == "" {
		return "", false
	}
	if r.IsExternal(key) {
		r.store(key, "")
		return "", false
	}

	result := make(map[string]string, 1)
	owned, waiting := r.claim([]string{key}, result)
	if len(owned) == 1 {
		lookupCtx, cancel := detach(ctx)
		id, cacheable := r.fetchOne(lookupCtx, key)
		cancel()
		r.finish(key, id, cacheable)
		return id, id != ""
	}
	r.await(ctx, waiting, result)
	id := result[key]
	return id, id != ""
}

// ResolveMany resolves emails in batches of LookupBatchSize. A failed batch
// falls back to individual lookups. Emails already being resolved by another
// caller are waited for rather than fetched again. The result only holds
// resolved emails, keyed by lower-cased address.
func (r *IdentityResolver) ResolveMany(ctx context.Context, emails []string) map[string]string {
	result := make(map[string]string, len(emails))
	seen := make(map[string]struct{}, len(emails))
	var keys []string

	for _, email := range emails {
		key := normalizeEmail(email)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if r.IsExternal(key) {
			r.store(key, "")
			continue
		}
		keys = append(keys, key)
	}

	owned, waiting := r.claim(keys, result)
	if len(owned) > 0 {
		lookupCtx, cancel := detach(ctx)
		for start := 0; start < len(owned); start += LookupBatchSize {
			end := min(start+LookupBatchSize, len(owned))
			r.fetchBatch(lookupCtx, owned[start:end], result)
		}
		cancel()
	}
	r.await(ctx, waiting, result)
	return result
}

// fetchBatch resolves one claimed chunk and releases every key in it
func (r *IdentityResolver) fetchBatch(ctx context.Context, chunk []string, result map[string]string) {
	ids, err := r.lookup.LookupUsers(ctx, chunk)
	if err != nil {
		if isContextErr(ctx, err) {
			log.Printf("[IdentityResolver] Batch lookup of %d emails interrupted: %v", len(chunk), err)
			for _, key := range chunk {
				r.finish(key, "", false)
			}
			return
		}
		log.Printf("[IdentityResolver] Batch lookup of %d emails failed, falling back: %v", len(chunk), err)
		for _, key := range chunk {
			id, cacheable := r.fetchOne(ctx, key)
			r.finish(key, id, cacheable)
			if id != "" {
				result[key] = id
			}
		}
		return
	}
	for _, key := range chunk {
		id := ids[key]
		r.finish(key, id, true)
		if id != "" {
			result[key] = id
		}
	}
}

// fetchOne looks key up on its own. cacheable is false when the lookup was
// interrupted rather than answered.
func (r *IdentityResolver) fetchOne(ctx context.Context, key string) (id string, cacheable bool) {
	id, err := r.lookup.LookupUser(ctx, key)
	if err != nil {
		log.Printf("[IdentityResolver] Lookup failed for %s: %v", key, err)
		return "", !isContextErr(ctx, err)
	}
	return id, true
}

// claim splits keys into cache hits (written to result), keys this caller
// must fetch, and keys another caller is already fetching.
func (r *IdentityResolver) claim(keys []string, result map[string]string) ([]string, map[string]*lookupCall) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var owned []string
	waiting := make(map[string]*lookupCall)
	for _, key := range keys {
		if id, ok := r.ids[key]; ok {
			if id != "" {
				result[key] = id
			}
			continue
		}
		if call, ok := r.inflight[key]; ok {
			waiting[key] = call
			continue
		}
		r.inflight[key] = &lookupCall{done: make(chan struct{})}
		owned = append(owned, key)
	}
	return owned, waiting
}

// finish publishes the outcome for a claimed key and wakes its waiters
func (r *IdentityResolver) finish(key, id string, cacheable bool) {
	r.mu.Lock()
	call := r.inflight[key]
	delete(r.inflight, key)
	if cacheable {
		r.ids[key] = id
	}
	r.mu.Unlock()

	if call != nil {
		call.id = id
		close(call.done)
	}
}

// await collects lookups owned by other callers until they finish or ctx ends
func (r *IdentityResolver) await(ctx context.Context, waiting map[string]*lookupCall, result map[string]string) {
	for key, call := range waiting {
		select {
		case <-call.done:
			if call.id != "" {
				result[key] = call.id
			}
		case <-ctx.Done():
			return
		}
	}
}

// Invalidate forgets every cached mapping
func (r *IdentityResolver) Invalidate() {
	r.mu.Lock()
	r.ids = make(map[string]string)
	r.mu.Unlock()
}

func (r *IdentityResolver) store(key, id string) {
	r.mu.Lock()
	r.ids[key] = id
	r.mu.Unlock()
}

// detach runs shared lookups independently of the caller that started them,
// so one disconnecting client does not fail the lookup for every waiter.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
}

func isContextErr(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
