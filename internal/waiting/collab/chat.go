package collab

import (
	"context"
	"fmt"

	"waiting-backend/internal/waiting/domain"
)

const defaultChatLimit = 50

// ChatSource finds chats whose last message came from someone else and has gone stale
type ChatSource struct {
	api GraphAPI
}

func NewChatSource(api GraphAPI) *ChatSource {
	return &ChatSource{api: api}
}

func (s *ChatSource) Name() string { return "chat" }

func (s *ChatSource) Fetch(ctx context.Context, req FetchRequest) ([]domain.Conversation, error) {
	chats, err := s.api.Chats(ctx, req.Limit(defaultChatLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	cutoff := req.Cutoff()
	var conversations []domain.Conversation
	for _, chat := range chats {
		last := chat.LastMessagePreview
		if last == nil || last.IsDeleted {
			continue
		}
		if last.MessageType != "" && last.MessageType != "message" {
			continue
		}
		sender := identityPerson(last.From)
		if sender.ID == "" || sender.ID == req.Me.ID {
			continue
		}
		if last.CreatedDateTime.After(cutoff) {
			continue
		}

		preview := Preview(last.Body.Content)
		conversations = append(conversations, domain.Conversation{
			ID:                 ChatConversationID(chat.ID, last.ID),
			Type:               domain.ConversationTeamsChat,
			Subject:            chatSubject(chat.Topic, sender),
			Preview:            preview,
			Sender:             sender,
			ReceivedAt:         last.CreatedDateTime,
			WebURL:             chat.WebURL,
			ChatID:             chat.ID,
			IsQuestion:         IsQuestion(preview),
			HasDeadlineMention: HasDeadlineMention(preview),
		})
	}
	return conversations, nil
}

func chatSubject(topic string, sender domain.Person) string {
	if topic != "" {
		return topic
	}
	if sender.DisplayName != "" {
		return "Chat with " + sender.DisplayName
	}
	return "Chat"
}
