package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"waiting-backend/internal/waiting/domain"
	"waiting-backend/internal/waiting/repository"
)

// StateKey is the blob key of the dismiss/snooze state
const StateKey = "waiting-view-state"

// ErrInvalidSnooze is returned for a snooze that ends in the past
var ErrInvalidSnooze = errors.New("snooze must end in the future")

// PersistenceStore keeps dismiss/snooze records in a single blob.
// Expired records are dropped lazily on every read.
type PersistenceStore struct {
	store repository.StateStore
	now   func() time.Time
	mu    sync.Mutex
}

func NewPersistenceStore(store repository.StateStore, now func() time.Time) *PersistenceStore {
	if now == nil {
		now = time.Now
	}
	return &PersistenceStore{store: store, now: now}
}

// Load returns the live state. A missing or corrupt blob yields the empty state.
func (p *PersistenceStore) Load(ctx context.Context) domain.PersistedState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadLocked(ctx)
}

// Dismiss hides a conversation for DismissTTL, replacing any earlier dismissal
func (p *PersistenceStore) Dismiss(ctx context.Context, conversationID string) (domain.DismissedItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.loadLocked(ctx)
	now := p.now()
	item := domain.DismissedItem{
		ConversationID: conversationID,
		DismissedAt:    now,
		ExpiresAt:      now.Add(domain.DismissTTL),
	}
	kept := state.Dismissed[:0]
	for _, d := range state.Dismissed {
		if d.ConversationID != conversationID {
			kept = append(kept, d)
		}
	}
	state.Dismissed = append(kept, item)
	return item, p.saveLocked(ctx, state)
}

// Snooze marks a conversation until the given time, replacing any earlier snooze
func (p *PersistenceStore) Snooze(ctx context.Context, conversationID string, until time.Time, reason string) (domain.SnoozedItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !until.After(now) {
		return domain.SnoozedItem{}, ErrInvalidSnooze
	}
	state := p.loadLocked(ctx)
	item := domain.SnoozedItem{
		ConversationID: conversationID,
		SnoozedAt:      now,
		SnoozedUntil:   until,
		Reason:         reason,
	}
	kept := state.Snoozed[:0]
	for _, s := range state.Snoozed {
		if s.ConversationID != conversationID {
			kept = append(kept, s)
		}
	}
	state.Snoozed = append(kept, item)
	return item, p.saveLocked(ctx, state)
}

// Unsnooze removes the snooze for a conversation, if any
func (p *PersistenceStore) Unsnooze(ctx context.Context, conversationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.loadLocked(ctx)
	kept := state.Snoozed[:0]
	for _, s := range state.Snoozed {
		if s.ConversationID != conversationID {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(state.Snoozed) {
		return nil
	}
	state.Snoozed = kept
	return p.saveLocked(ctx, state)
}

func (p *PersistenceStore) loadLocked(ctx context.Context) domain.PersistedState {
	state := domain.EmptyState()

	raw, ok, err := p.store.Get(ctx, StateKey)
	if err != nil {
		log.Printf("[Persistence] Failed to read state: %v", err)
		return state
	}
	if !ok || raw == "" {
		return state
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		log.Printf("[Persistence] Discarding corrupt state: %v", err)
		return domain.EmptyState()
	}
	if state.Dismissed == nil {
		state.Dismissed = []domain.DismissedItem{}
	}
	if state.Snoozed == nil {
		state.Snoozed = []domain.SnoozedItem{}
	}

	now := p.now()
	cleaned, changed := CleanupState(state, now)
	if changed {
		cleaned.LastCleanup = now
		if err := p.saveLocked(ctx, cleaned); err != nil {
			log.Printf("[Persistence] Failed to write cleaned state: %v", err)
		}
	}
	return cleaned
}

func (p *PersistenceStore) saveLocked(ctx context.Context, state domain.PersistedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := p.store.Set(ctx, StateKey, string(data)); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// CleanupState drops expired dismissals (now >= expiresAt) and snoozes (now > snoozedUntil)
func CleanupState(state domain.PersistedState, now time.Time) (domain.PersistedState, bool) {
	out := domain.PersistedState{
		Dismissed:   make([]domain.DismissedItem, 0, len(state.Dismissed)),
		Snoozed:     make([]domain.SnoozedItem, 0, len(state.Snoozed)),
		LastCleanup: state.LastCleanup,
	}
	for _, d := range state.Dismissed {
		if now.Before(d.ExpiresAt) {
			out.Dismissed = append(out.Dismissed, d)
		}
	}
	for _, s := range state.Snoozed {
		if !now.After(s.SnoozedUntil) {
			out.Snoozed = append(out.Snoozed, s)
		}
	}
	changed := len(out.Dismissed) != len(state.Dismissed) || len(out.Snoozed) != len(state.Snoozed)
	return out, changed
}

// ApplyState drops dismissed conversations and marks snoozed ones,
// dropping those too when hideSnoozed is set. Expired records are ignored.
func ApplyState(conversations []domain.Conversation, state domain.PersistedState, hideSnoozed bool, now time.Time) []domain.Conversation {
	live, _ := CleanupState(state, now)

	dismissed := make(map[string]struct{}, len(live.Dismissed))
	for _, d := range live.Dismissed {
		dismissed[d.ConversationID] = struct{}{}
	}
	snoozed := make(map[string]time.Time, len(live.Snoozed))
	for _, s := range live.Snoozed {
		snoozed[s.ConversationID] = s.SnoozedUntil
	}

	out := make([]domain.Conversation, 0, len(conversations))
	for _, c := range conversations {
		if _, ok := dismissed[c.ID]; ok {
			continue
		}
		c.SnoozedUntil = nil
		if until, ok := snoozed[c.ID]; ok {
			if hideSnoozed {
				continue
			}
			c.SnoozedUntil = &until
		}
		out = append(out, c)
	}
	return out
}
