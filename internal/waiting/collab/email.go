package collab

import (
	"context"
	"fmt"
	"strings"

	"waiting-backend/internal/waiting/domain"
)

const defaultEmailLimit = 50

// EmailSource finds inbox threads with no reply from the user since the last inbound message
type EmailSource struct {
	api GraphAPI
}

func NewEmailSource(api GraphAPI) *EmailSource {
	return &EmailSource{api: api}
}

func (s *EmailSource) Name() string { return "email" }

func (s *EmailSource) Fetch(ctx context.Context, req FetchRequest) ([]domain.Conversation, error) {
	messages, err := s.api.InboxMessages(ctx, req.Cutoff(), req.Limit(defaultEmailLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	oldest := messages[0].ReceivedDateTime
	for _, m := range messages {
		if m.ReceivedDateTime.Before(oldest) {
			oldest = m.ReceivedDateTime
		}
	}
	sent, err := s.api.SentConversations(ctx, oldest)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent items: %w", err)
	}

	seen := make(map[string]struct{}, len(messages))
	conversations := make([]domain.Conversation, 0, len(messages))
	for _, m := range messages {
		threadID := m.ConversationID
		if threadID == "" {
			threadID = m.ID
		}
		if _, dup := seen[threadID]; dup {
			continue
		}
		seen[threadID] = struct{}{}

		if m.From == nil || strings.EqualFold(m.From.EmailAddress.Address, req.Me.Email) {
			continue
		}
		if repliedAt, ok := sent[m.ConversationID]; ok && repliedAt.After(m.ReceivedDateTime) {
			continue
		}

		conversations = append(conversations, mailConversation(
			EmailConversationID(threadID), m.Subject, m.BodyPreview,
			m.From.EmailAddress.Name, m.From.EmailAddress.Address, m.ReceivedDateTime, m.WebLink,
		))
	}
	return conversations, nil
}
