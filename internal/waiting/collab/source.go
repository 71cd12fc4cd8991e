package collab

import (
	"context"
	"time"

	"waiting-backend/internal/waiting/domain"
)

// MentionLookback bounds how far back the mention source looks
const MentionLookback = 7 * 24 * time.Hour

// FetchRequest carries everything a source needs for one refresh
type FetchRequest struct {
	Me            domain.CurrentUser
	MinStaleHours int
	MaxResults    int
	Teams         []domain.Team
	Now           time.Time
}

// Cutoff is the newest timestamp still considered stale
func (r FetchRequest) Cutoff() time.Time {
	return r.Now.Add(-time.Duration(r.MinStaleHours) * time.Hour)
}

// Limit returns MaxResults, or fallback when unset
func (r FetchRequest) Limit(fallback int) int {
	if r.MaxResults > 0 {
		return r.MaxResults
	}
	return fallback
}

// Source produces conversation records from one stream.
// Sources leave StaleDurationHours and scoring to the aggregator.
type Source interface {
	Name() string
	Fetch(ctx context.Context, req FetchRequest) ([]domain.Conversation, error)
}

// EmailConversationID builds the id of a mail thread
func EmailConversationID(threadID string) string {
	return "email:" + threadID
}

// ChatConversationID builds the id of a chat message
func ChatConversationID(chatID, messageID string) string {
	return "chat:" + chatID + ":" + messageID
}

// ChannelConversationID builds the id of a channel root message.
// The channel and mention sources share it so their records merge.
func ChannelConversationID(teamID, channelID, messageID string) string {
	return "channel:" + teamID + ":" + channelID + ":" + messageID
}
