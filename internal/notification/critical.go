package notification

import (
	"context"
	"fmt"
	"log"
	"sync"

	"waiting-backend/internal/waiting/domain"
	"waiting-backend/internal/waiting/usecase"
	"waiting-backend/pkg/fcm"
)

// Pusher sends a notification to device tokens and returns the failed ones
type Pusher interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// TokenStore lists and prunes registered devices
type TokenStore interface {
	ListTokens(ctx context.Context) ([]domain.DeviceToken, error)
	DeleteToken(ctx context.Context, token string) error
}

var _ usecase.RefreshListener = (*CriticalNotifier)(nil)

// CriticalNotifier pushes a notification when critical conversations appear.
// The first refresh only records what is already critical.
type CriticalNotifier struct {
	pusher Pusher
	tokens TokenStore

	mu       sync.Mutex
	primed   bool
	critical map[string]struct{}
}

func NewCriticalNotifier(pusher Pusher, tokens TokenStore) *CriticalNotifier {
	return &CriticalNotifier{
		pusher:   pusher,
		tokens:   tokens,
		critical: make(map[string]struct{}),
	}
}

func (n *CriticalNotifier) OnRefresh(ctx context.Context, data *domain.GroupedWaitingData) {
	fresh := n.newlyCritical(data)
	if len(fresh) == 0 {
		return
	}

	devices, err := n.tokens.ListTokens(ctx)
	if err != nil {
		log.Printf("[FCM] Error listing device tokens: %v", err)
		return
	}
	if len(devices) == 0 {
		log.Printf("[FCM] %d new critical items but no registered devices", len(fresh))
		return
	}
	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.Token)
	}

	failed, err := n.pusher.SendToDevices(ctx, tokens, criticalNotification(fresh))
	if err != nil {
		log.Printf("[FCM] Error sending critical notification: %v", err)
	}
	for _, token := range failed {
		if err := n.tokens.DeleteToken(ctx, token); err != nil {
			log.Printf("[FCM] Failed to prune token: %v", err)
		}
	}
}

// newlyCritical returns critical conversations absent from the previous refresh, most urgent first
func (n *CriticalNotifier) newlyCritical(data *domain.GroupedWaitingData) []domain.Conversation {
	current := make(map[string]struct{})
	var fresh []domain.Conversation

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range data.AllConversations {
		if c.UrgencyScore < domain.CriticalUrgency || c.SnoozedUntil != nil {
			continue
		}
		current[c.ID] = struct{}{}
		if _, known := n.critical[c.ID]; !known {
			fresh = append(fresh, c)
		}
	}
	n.critical = current
	if !n.primed {
		n.primed = true
		return nil
	}
	return fresh
}

func criticalNotification(fresh []domain.Conversation) fcm.NotificationData {
	top := fresh[0]
	title := fmt.Sprintf("%s is waiting on you", senderName(top.Sender))
	if len(fresh) > 1 {
		title = fmt.Sprintf("%d critical items are waiting on you", len(fresh))
	}
	body := top.Subject
	if body == "" {
		body = top.Preview
	}
	if len(fresh) > 1 {
		body = fmt.Sprintf("%s: %s", senderName(top.Sender), body)
	}

	return fcm.NotificationData{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":            "waiting_critical",
			"conversation_id": top.ID,
			"count":           fmt.Sprintf("%d", len(fresh)),
		},
		ClickAction: "/waiting",
	}
}

func senderName(p domain.Person) string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Email != "":
		return p.Email
	default:
		return "Someone"
	}
}
