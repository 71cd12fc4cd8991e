package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"waiting-backend/internal/waiting/collab"
	"waiting-backend/internal/waiting/domain"
)

type fakeUsers struct {
	user  domain.CurrentUser
	err   error
	calls atomic.Int32
}

func (f *fakeUsers) CurrentUser(context.Context) (domain.CurrentUser, error) {
	f.calls.Add(1)
	return f.user, f.err
}

type fakeRelationships struct {
	rc          domain.RelationshipContext
	invalidated atomic.Int32
}

func (f *fakeRelationships) Context(context.Context) domain.RelationshipContext { return f.rc }

func (f *fakeRelationships) InvalidateAll() { f.invalidated.Add(1) }

type fakeSource struct {
	name  string
	convs []domain.Conversation
	err   error
	calls atomic.Int32
	last  collab.FetchRequest
	mu    sync.Mutex
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(_ context.Context, req collab.FetchRequest) ([]domain.Conversation, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Conversation(nil), f.convs...), nil
}

type fakeLookup struct {
	users map[string]string
	calls atomic.Int32
}

func (f *fakeLookup) LookupUser(_ context.Context, email string) (string, error) {
	f.calls.Add(1)
	return f.users[email], nil
}

func (f *fakeLookup) LookupUsers(_ context.Context, emails []string) (map[string]string, error) {
	f.calls.Add(1)
	out := make(map[string]string)
	for _, e := range emails {
		if id, ok := f.users[e]; ok {
			out[e] = id
		}
	}
	return out, nil
}

type fakeAvatars struct {
	photos      map[string]string
	requested   []string
	invalidated atomic.Int32
	mu          sync.Mutex
}

func (f *fakeAvatars) Prefetch(_ context.Context, ids []string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, ids...)
	out := make(map[string]string)
	for _, id := range ids {
		if p, ok := f.photos[id]; ok {
			out[id] = p
		}
	}
	return out
}

func (f *fakeAvatars) Invalidate() { f.invalidated.Add(1) }

var errBoom = errors.New("boom")
