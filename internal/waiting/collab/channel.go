package collab

import (
	"context"
	"log"
	"sync"

	"waiting-backend/internal/waiting/domain"
	"waiting-backend/pkg/graph"

	"golang.org/x/sync/errgroup"
)

const (
	channelMessageLimit = 25
	teamConcurrency     = 4
)

type channelVisitor func(team domain.Team, channel graph.Channel, messages []graph.ChatMessage)

// walkChannels lists recent messages of every channel in teams.
// A failing team or channel is logged and skipped.
func walkChannels(ctx context.Context, api GraphAPI, teams []domain.Team, visit channelVisitor) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(teamConcurrency)

	for _, team := range teams {
		g.Go(func() error {
			channels, err := api.Channels(gctx, team.ID)
			if err != nil {
				log.Printf("[ChannelSource] Failed to list channels of team %s: %v", team.DisplayName, err)
				return nil
			}
			for _, ch := range channels {
				messages, err := api.ChannelMessages(gctx, team.ID, ch.ID, channelMessageLimit)
				if err != nil {
					log.Printf("[ChannelSource] Failed to list messages of %s/%s: %v", team.DisplayName, ch.DisplayName, err)
					continue
				}
				mu.Lock()
				visit(team, ch, messages)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
}

func channelConversation(team domain.Team, ch graph.Channel, m graph.ChatMessage) domain.Conversation {
	preview := Preview(m.Body.Content)
	subject := m.Subject
	if subject == "" {
		subject = team.DisplayName + " / " + ch.DisplayName
	}
	webURL := m.WebURL
	if webURL == "" {
		webURL = ch.WebURL
	}
	return domain.Conversation{
		ID:                 ChannelConversationID(team.ID, ch.ID, m.ID),
		Type:               domain.ConversationTeamsChannel,
		Subject:            subject,
		Preview:            preview,
		Sender:             identityPerson(m.From),
		ReceivedAt:         m.CreatedDateTime,
		WebURL:             webURL,
		ReplyToID:          m.ID,
		TeamID:             team.ID,
		ChannelID:          ch.ID,
		TeamName:           team.DisplayName,
		ChannelName:        ch.DisplayName,
		IsQuestion:         IsQuestion(subject + " " + preview),
		HasDeadlineMention: HasDeadlineMention(subject + " " + preview),
	}
}

// awaitingReply reports whether m is a live root message from someone else
// that mentions userID and that userID has not answered
func awaitingReply(m graph.ChatMessage, userID string) bool {
	if m.ReplyToID != "" || m.DeletedDateTime != nil {
		return false
	}
	if m.MessageType != "" && m.MessageType != "message" {
		return false
	}
	from := m.From.UserID()
	if from == "" || from == userID {
		return false
	}
	return m.MentionsUser(userID) && !m.RepliedBy(userID)
}

// ChannelSource finds stale channel threads that mention the user without a reply from them
type ChannelSource struct {
	api GraphAPI
}

func NewChannelSource(api GraphAPI) *ChannelSource {
	return &ChannelSource{api: api}
}

func (s *ChannelSource) Name() string { return "channel" }

func (s *ChannelSource) Fetch(ctx context.Context, req FetchRequest) ([]domain.Conversation, error) {
	cutoff := req.Cutoff()
	var conversations []domain.Conversation
	walkChannels(ctx, s.api, req.Teams, func(team domain.Team, ch graph.Channel, messages []graph.ChatMessage) {
		for _, m := range messages {
			if !awaitingReply(m, req.Me.ID) || m.CreatedDateTime.After(cutoff) {
				continue
			}
			conversations = append(conversations, channelConversation(team, ch, m))
		}
	})
	return conversations, nil
}
