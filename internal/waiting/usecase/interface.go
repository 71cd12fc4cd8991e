package usecase

import (
	"context"
	"errors"
	"time"

	"waiting-backend/internal/waiting/domain"
)

// ErrConversationNotFound is returned for ids absent from the last snapshot
var ErrConversationNotFound = errors.New("conversation not found")

// UrgencyExplanation is the itemized score of one conversation
type UrgencyExplanation struct {
	ConversationID string                 `json:"conversation_id"`
	Score          int                    `json:"score"`
	Level          string                 `json:"level"`
	Factors        []domain.UrgencyFactor `json:"factors"`
}

// WaitingUsecase defines the interface for waiting-on-you use cases
type WaitingUsecase interface {
	GetWaitingData(ctx context.Context, filter domain.WaitingFilter) (*domain.GroupedWaitingData, error)
	Refresh(ctx context.Context) (*domain.GroupedWaitingData, error)
	Snapshot() (*domain.GroupedWaitingData, time.Time, bool)
	ExplainUrgency(conversationID string) (*UrgencyExplanation, error)
	Search(query string, limit int) []domain.Conversation
	Dismiss(ctx context.Context, conversationID string) (domain.DismissedItem, error)
	Snooze(ctx context.Context, conversationID string, until time.Time, reason string) (domain.SnoozedItem, error)
	Unsnooze(ctx context.Context, conversationID string) error
	Trend(ctx context.Context, days int) domain.WaitingDebtTrend
	InvalidateCaches()
	DefaultFilter() domain.WaitingFilter
	SLATargets() []domain.ResponseTimeSLA
	SetSLATargets(slas []domain.ResponseTimeSLA)
}
