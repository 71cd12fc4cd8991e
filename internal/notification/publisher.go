package notification

import (
	"context"
	"time"

	"waiting-backend/internal/waiting/domain"
)

// EventWaitingUpdate is the SSE event sent after each refresh
const EventWaitingUpdate = "waiting_update"

// Broadcaster delivers an event to every connected client
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
}

// WaitingUpdate is the summary pushed to clients after a refresh
type WaitingUpdate struct {
	TotalItems         int       `json:"total_items"`
	TotalPeopleWaiting int       `json:"total_people_waiting"`
	CriticalCount      int       `json:"critical_count"`
	SnoozedCount       int       `json:"snoozed_count"`
	RefreshedAt        time.Time `json:"refreshed_at"`
}

// SSEPublisher announces refreshes to connected clients
type SSEPublisher struct {
	broadcaster Broadcaster
	now         func() time.Time
}

func NewSSEPublisher(broadcaster Broadcaster, now func() time.Time) *SSEPublisher {
	if now == nil {
		now = time.Now
	}
	return &SSEPublisher{broadcaster: broadcaster, now: now}
}

func (p *SSEPublisher) OnRefresh(_ context.Context, data *domain.GroupedWaitingData) {
	p.broadcaster.Broadcast(EventWaitingUpdate, WaitingUpdate{
		TotalItems:         data.TotalItems,
		TotalPeopleWaiting: data.TotalPeopleWaiting,
		CriticalCount:      data.CriticalCount,
		SnoozedCount:       data.SnoozedCount,
		RefreshedAt:        p.now(),
	})
}
