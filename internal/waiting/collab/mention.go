package collab

import (
	"context"
	"fmt"
	"log"
	"time"

	"waiting-backend/internal/waiting/domain"
	"waiting-backend/pkg/graph"
)

const (
	mentionChatLimit    = 10
	mentionMessageLimit = 25
)

// MentionSource finds unanswered @mentions of the user within the lookback window,
// in channels and in the most recent chats. Records are flagged IsMention.
type MentionSource struct {
	api GraphAPI
}

func NewMentionSource(api GraphAPI) *MentionSource {
	return &MentionSource{api: api}
}

func (s *MentionSource) Name() string { return "mention" }

func (s *MentionSource) Fetch(ctx context.Context, req FetchRequest) ([]domain.Conversation, error) {
	since := req.Now.Add(-MentionLookback)
	var conversations []domain.Conversation

	walkChannels(ctx, s.api, req.Teams, func(team domain.Team, ch graph.Channel, messages []graph.ChatMessage) {
		for _, m := range messages {
			if !awaitingReply(m, req.Me.ID) || m.CreatedDateTime.Before(since) {
				continue
			}
			c := channelConversation(team, ch, m)
			c.IsMention = true
			conversations = append(conversations, c)
		}
	})

	chats, err := s.api.Chats(ctx, mentionChatLimit)
	if err != nil {
		if len(conversations) == 0 {
			return nil, fmt.Errorf("failed to list chats: %w", err)
		}
		log.Printf("[MentionSource] Failed to list chats: %v", err)
		return conversations, nil
	}
	for _, chat := range chats {
		messages, err := s.api.ChatMessages(ctx, chat.ID, mentionMessageLimit)
		if err != nil {
			log.Printf("[MentionSource] Failed to list messages of chat %s: %v", chat.ID, err)
			continue
		}
		conversations = append(conversations, chatMentions(chat, messages, req.Me.ID, since)...)
	}
	return conversations, nil
}

// chatMentions returns mentions of userID with no later message from userID
func chatMentions(chat graph.Chat, messages []graph.ChatMessage, userID string, since time.Time) []domain.Conversation {
	var lastOwn time.Time
	for _, m := range messages {
		if m.From.UserID() == userID && m.CreatedDateTime.After(lastOwn) {
			lastOwn = m.CreatedDateTime
		}
	}

	var out []domain.Conversation
	for _, m := range messages {
		if m.DeletedDateTime != nil || m.CreatedDateTime.Before(since) {
			continue
		}
		sender := identityPerson(m.From)
		if sender.ID == "" || sender.ID == userID || !m.MentionsUser(userID) {
			continue
		}
		if lastOwn.After(m.CreatedDateTime) {
			continue
		}
		preview := Preview(m.Body.Content)
		out = append(out, domain.Conversation{
			ID:                 ChatConversationID(chat.ID, m.ID),
			Type:               domain.ConversationTeamsChat,
			Subject:            chatSubject(chat.Topic, sender),
			Preview:            preview,
			Sender:             sender,
			ReceivedAt:         m.CreatedDateTime,
			WebURL:             chat.WebURL,
			ChatID:             chat.ID,
			IsQuestion:         IsQuestion(preview),
			HasDeadlineMention: HasDeadlineMention(preview),
			IsMention:          true,
		})
	}
	return out
}
