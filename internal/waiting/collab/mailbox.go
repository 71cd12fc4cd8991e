package collab

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"waiting-backend/internal/waiting/domain"
	"waiting-backend/pkg/gmail"
	"waiting-backend/pkg/imap"

	"golang.org/x/oauth2"
)

// GmailThreads lists stale Gmail threads
type GmailThreads interface {
	ListStaleThreads(ctx context.Context, accessToken, refreshToken string, cutoff time.Time, limit int, onTokenRefresh gmail.TokenUpdateFunc) ([]gmail.StaleThread, error)
}

// GmailSource is an email source backed by the Gmail API.
// Senders are left unresolved for the identity resolver.
type GmailSource struct {
	svc GmailThreads

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func NewGmailSource(svc GmailThreads, accessToken, refreshToken string) *GmailSource {
	return &GmailSource{svc: svc, accessToken: accessToken, refreshToken: refreshToken}
}

func (s *GmailSource) Name() string { return "email" }

func (s *GmailSource) Fetch(ctx context.Context, req FetchRequest) ([]domain.Conversation, error) {
	s.mu.Lock()
	access, refresh := s.accessToken, s.refreshToken
	s.mu.Unlock()

	threads, err := s.svc.ListStaleThreads(ctx, access, refresh, req.Cutoff(), req.Limit(defaultEmailLimit), s.storeToken)
	if err != nil {
		return nil, fmt.Errorf("failed to list gmail threads: %w", err)
	}

	conversations := make([]domain.Conversation, 0, len(threads))
	for _, t := range threads {
		if strings.EqualFold(t.FromEmail, req.Me.Email) {
			continue
		}
		conversations = append(conversations, mailConversation(
			EmailConversationID(t.ThreadID), t.Subject, t.Snippet, t.FromName, t.FromEmail, t.ReceivedAt, t.WebURL,
		))
	}
	return conversations, nil
}

// GmailWatcher registers inbox push notifications
type GmailWatcher interface {
	Watch(ctx context.Context, accessToken, refreshToken string, topicName string, onTokenRefresh gmail.TokenUpdateFunc) error
}

// Watch asks Gmail to publish inbox changes to topic, using this source's tokens
func (s *GmailSource) Watch(ctx context.Context, w GmailWatcher, topic string) error {
	s.mu.Lock()
	access, refresh := s.accessToken, s.refreshToken
	s.mu.Unlock()
	return w.Watch(ctx, access, refresh, topic, s.storeToken)
}

func (s *GmailSource) storeToken(token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.refreshToken = token.RefreshToken
	}
	return nil
}

// UnansweredMail lists unanswered IMAP messages
type UnansweredMail interface {
	ListUnanswered(ctx context.Context, cutoff time.Time, limit int) ([]imap.Message, error)
}

// IMAPSource is an email source backed by an IMAP mailbox
type IMAPSource struct {
	svc UnansweredMail
}

func NewIMAPSource(svc UnansweredMail) *IMAPSource {
	return &IMAPSource{svc: svc}
}

func (s *IMAPSource) Name() string { return "email" }

func (s *IMAPSource) Fetch(ctx context.Context, req FetchRequest) ([]domain.Conversation, error) {
	messages, err := s.svc.ListUnanswered(ctx, req.Cutoff(), req.Limit(defaultEmailLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list imap messages: %w", err)
	}

	conversations := make([]domain.Conversation, 0, len(messages))
	for _, m := range messages {
		if strings.EqualFold(m.FromEmail, req.Me.Email) {
			continue
		}
		threadID := m.MessageID
		if threadID == "" {
			threadID = "uid-" + strconv.FormatUint(uint64(m.UID), 10)
		}
		conversations = append(conversations, mailConversation(
			EmailConversationID(threadID), m.Subject, m.Text, m.FromName, m.FromEmail, m.ReceivedAt, "",
		))
	}
	return conversations, nil
}

func mailConversation(id, subject, body, fromName, fromEmail string, receivedAt time.Time, webURL string) domain.Conversation {
	preview := Preview(body)
	return domain.Conversation{
		ID:                 id,
		Type:               domain.ConversationEmail,
		Subject:            subject,
		Preview:            preview,
		Sender:             domain.Person{DisplayName: fromName, Email: strings.ToLower(fromEmail)},
		ReceivedAt:         receivedAt,
		WebURL:             webURL,
		IsQuestion:         IsQuestion(subject + " " + preview),
		HasDeadlineMention: HasDeadlineMention(subject + " " + preview),
	}
}
