package domain

import "time"

// ConversationType identifies the stream a conversation came from
type ConversationType string

const (
	ConversationEmail        ConversationType = "email"
	ConversationTeamsChat    ConversationType = "teams-chat"
	ConversationTeamsChannel ConversationType = "teams-channel"
)

// Factor tags for urgency explanations
const (
	FactorWaitTimeExtreme    = "wait-time-extreme"
	FactorWaitTimeHigh       = "wait-time-high"
	FactorWaitTimeMedium     = "wait-time-medium"
	FactorSenderManager      = "sender-manager"
	FactorSenderDirectReport = "sender-direct-report"
	FactorSenderFrequent     = "sender-frequent"
	FactorSenderExternal     = "sender-external"
	FactorContentQuestion    = "content-question"
	FactorContentDeadline    = "content-deadline"
	FactorContentMention     = "content-mention"
	FactorSLABreach          = "sla-breach"
)

// Urgency bounds
const (
	BaseUrgency     = 5
	MaxUrgency      = 10
	CriticalUrgency = 9
	HighUrgency     = 7
)

// UrgencyFactor is one point-valued contribution to a conversation's urgency score
type UrgencyFactor struct {
	Factor      string `json:"factor"`
	Points      int    `json:"points"`
	Description string `json:"description"`
}

// Conversation is a thread where a response is owed
type Conversation struct {
	ID                 string           `json:"id"`
	Type               ConversationType `json:"type"`
	Subject            string           `json:"subject"`
	Preview            string           `json:"preview"`
	Sender             Person           `json:"sender"`
	ReceivedAt         time.Time        `json:"received_at"`
	StaleDurationHours int              `json:"stale_duration_hours"`
	UrgencyScore       int              `json:"urgency_score"`
	UrgencyFactors     []UrgencyFactor  `json:"urgency_factors"`
	WebURL             string           `json:"web_url"`
	ChatID             string           `json:"chat_id,omitempty"`
	ReplyToID          string           `json:"reply_to_id,omitempty"`
	TeamID             string           `json:"team_id,omitempty"`
	ChannelID          string           `json:"channel_id,omitempty"`
	TeamName           string           `json:"team_name,omitempty"`
	ChannelName        string           `json:"channel_name,omitempty"`
	IsQuestion         bool             `json:"is_question"`
	HasDeadlineMention bool             `json:"has_deadline_mention"`
	IsMention          bool             `json:"is_mention"`
	SnoozedUntil       *time.Time       `json:"snoozed_until,omitempty"`
}

// StaleHours returns whole hours elapsed since receivedAt, never negative
func StaleHours(receivedAt, now time.Time) int {
	if receivedAt.IsZero() || now.Before(receivedAt) {
		return 0
	}
	return int(now.Sub(receivedAt) / time.Hour)
}
