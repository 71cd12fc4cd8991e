package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"waiting-backend/internal/waiting/domain"
	"waiting-backend/pkg/fuzzy"
)

const defaultSearchLimit = 20

type waitingUsecase struct {
	aggregator    *Aggregator
	persistence   *PersistenceStore
	trend         *TrendEstimator
	defaultFilter domain.WaitingFilter
	now           func() time.Time

	mu          sync.RWMutex
	snapshot    *domain.GroupedWaitingData
	collected   *Collected
	refreshedAt time.Time
}

// NewWaitingUsecase creates the waiting usecase. defaultFilter drives Refresh.
func NewWaitingUsecase(
	aggregator *Aggregator,
	persistence *PersistenceStore,
	trend *TrendEstimator,
	defaultFilter domain.WaitingFilter,
	now func() time.Time,
) WaitingUsecase {
	if now == nil {
		now = time.Now
	}
	return &waitingUsecase{
		aggregator:    aggregator,
		persistence:   persistence,
		trend:         trend,
		defaultFilter: defaultFilter,
		now:           now,
	}
}

func (u *waitingUsecase) GetWaitingData(ctx context.Context, filter domain.WaitingFilter) (*domain.GroupedWaitingData, error) {
	state := u.persistence.Load(ctx)
	return u.aggregator.GetWaitingData(ctx, filter, state)
}

// Refresh aggregates with the default filter and replaces the snapshot.
// The scored set is kept so state changes can regroup it without refetching.
func (u *waitingUsecase) Refresh(ctx context.Context) (*domain.GroupedWaitingData, error) {
	collected, err := u.aggregator.Collect(ctx, u.defaultFilter)
	if err != nil {
		return nil, err
	}
	data := u.aggregator.Present(ctx, collected, u.persistence.Load(ctx), u.defaultFilter.HideSnoozed)

	u.mu.Lock()
	u.snapshot = data
	u.collected = collected
	u.refreshedAt = u.now()
	u.mu.Unlock()

	if u.trend != nil {
		u.trend.Record(ctx, data)
	}
	return data, nil
}

func (u *waitingUsecase) Snapshot() (*domain.GroupedWaitingData, time.Time, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.snapshot, u.refreshedAt, u.snapshot != nil
}

func (u *waitingUsecase) ExplainUrgency(conversationID string) (*UrgencyExplanation, error) {
	u.mu.RLock()
	c, ok := u.snapshot.FindConversation(conversationID)
	u.mu.RUnlock()
	if !ok {
		return nil, ErrConversationNotFound
	}
	return &UrgencyExplanation{
		ConversationID: c.ID,
		Score:          c.UrgencyScore,
		Level:          UrgencyLevel(c.UrgencyScore),
		Factors:        c.UrgencyFactors,
	}, nil
}

// Search fuzzy-ranks snapshot conversations by subject, sender and preview
func (u *waitingUsecase) Search(query string, limit int) []domain.Conversation {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	u.mu.RLock()
	var all []domain.Conversation
	if u.snapshot != nil {
		all = u.snapshot.AllConversations
	}
	u.mu.RUnlock()

	type hit struct {
		conv  domain.Conversation
		score float64
	}
	var hits []hit
	for _, c := range all {
		score := fuzzy.Score(query,
			fuzzy.Field{Text: c.Subject, Weight: 100},
			fuzzy.Field{Text: c.Sender.DisplayName, Weight: 80},
			fuzzy.Field{Text: c.Sender.Email, Weight: 60},
			fuzzy.Field{Text: c.Preview, Weight: 20},
		)
		if score > 0 {
			hits = append(hits, hit{conv: c, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].conv.UrgencyScore > hits[j].conv.UrgencyScore
	})

	out := make([]domain.Conversation, 0, min(limit, len(hits)))
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		out = append(out, h.conv)
	}
	return out
}

func (u *waitingUsecase) Dismiss(ctx context.Context, conversationID string) (domain.DismissedItem, error) {
	item, err := u.persistence.Dismiss(ctx, conversationID)
	if err != nil {
		return item, err
	}
	u.reapplyState(ctx)
	return item, nil
}

func (u *waitingUsecase) Snooze(ctx context.Context, conversationID string, until time.Time, reason string) (domain.SnoozedItem, error) {
	item, err := u.persistence.Snooze(ctx, conversationID, until, reason)
	if err != nil {
		return item, err
	}
	u.reapplyState(ctx)
	return item, nil
}

func (u *waitingUsecase) Unsnooze(ctx context.Context, conversationID string) error {
	if err := u.persistence.Unsnooze(ctx, conversationID); err != nil {
		return err
	}
	u.reapplyState(ctx)
	return nil
}

// reapplyState regroups the last scored set under the current persisted state,
// so unsnoozed and no-longer-dismissed items come back without a refetch.
func (u *waitingUsecase) reapplyState(ctx context.Context) {
	u.mu.RLock()
	collected := u.collected
	u.mu.RUnlock()
	if collected == nil {
		return
	}

	state := u.persistence.Load(ctx)
	regrouped := u.aggregator.Present(ctx, collected, state, u.defaultFilter.HideSnoozed)

	u.mu.Lock()
	if u.collected == collected {
		u.snapshot = regrouped
	}
	u.mu.Unlock()
}

func (u *waitingUsecase) Trend(ctx context.Context, days int) domain.WaitingDebtTrend {
	return u.trend.Estimate(ctx, days)
}

func (u *waitingUsecase) InvalidateCaches() {
	u.aggregator.InvalidateCaches()
}

func (u *waitingUsecase) DefaultFilter() domain.WaitingFilter {
	return u.defaultFilter
}

func (u *waitingUsecase) SLATargets() []domain.ResponseTimeSLA {
	return u.aggregator.SLATargets()
}

func (u *waitingUsecase) SetSLATargets(slas []domain.ResponseTimeSLA) {
	u.aggregator.SetSLATargets(slas)
}
