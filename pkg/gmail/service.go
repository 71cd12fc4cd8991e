package gmail

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const fetchConcurrency = 10

// TokenUpdateFunc is called when the access token was refreshed
type TokenUpdateFunc func(token *oauth2.Token) error

type Service struct {
	clientID     string
	clientSecret string
}

type notifyTokenSource struct {
	mu       sync.Mutex
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	changed := s.current.AccessToken != t.AccessToken
	if changed {
		s.current = t
	}
	s.mu.Unlock()
	if changed && s.callback != nil {
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// StaleThread is an inbox thread whose newest message is inbound
type StaleThread struct {
	ThreadID   string
	MessageID  string
	Subject    string
	FromName   string
	FromEmail  string
	Snippet    string
	ReceivedAt time.Time
	WebURL     string
}

// GetGmailService creates a Gmail service for the given tokens
func (s *Service) GetGmailService(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrapped := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, wrapped)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// StaleInboxQuery selects inbox mail from others received before cutoff
func StaleInboxQuery(cutoff time.Time) string {
	return fmt.Sprintf("in:inbox -from:me before:%d", cutoff.Unix())
}

// ListStaleThreads returns inbox threads older than cutoff whose newest message
// was not sent by the user
func (s *Service) ListStaleThreads(ctx context.Context, accessToken, refreshToken string, cutoff time.Time, limit int, onTokenRefresh TokenUpdateFunc) ([]StaleThread, error) {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Users.Threads.List("me").Q(StaleInboxQuery(cutoff)).MaxResults(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list threads: %w", err)
	}

	results := make([]*StaleThread, len(resp.Threads))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, fetchConcurrency)

	for i, t := range resp.Threads {
		wg.Add(1)
		go func(i int, threadID string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			thread, err := srv.Users.Threads.Get("me", threadID).
				Format("metadata").
				MetadataHeaders("From", "Subject").
				Context(ctx).
				Do()
			if err != nil {
				log.Printf("[Gmail] Failed to get thread %s: %v", threadID, err)
				return
			}
			results[i] = toStaleThread(thread)
		}(i, t.Id)
	}
	wg.Wait()

	threads := make([]StaleThread, 0, len(results))
	for _, t := range results {
		if t != nil {
			threads = append(threads, *t)
		}
	}
	return threads, nil
}

// Watch registers inbox push notifications on a Pub/Sub topic
func (s *Service) Watch(ctx context.Context, accessToken, refreshToken string, topicName string, onTokenRefresh TokenUpdateFunc) error {
	srv, err := s.GetGmailService(ctx, accessToken, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}

	// Only one push client is allowed per mailbox
	_ = srv.Users.Stop("me").Context(ctx).Do()

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}
	resp, err := srv.Users.Watch("me", req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to watch mailbox: %w", err)
	}
	log.Printf("[Gmail] Watch started. Expiration: %d, HistoryId: %d", resp.Expiration, resp.HistoryId)
	return nil
}

// toStaleThread returns nil when the thread is empty or the user had the last word
func toStaleThread(thread *gmail.Thread) *StaleThread {
	if thread == nil || len(thread.Messages) == 0 {
		return nil
	}
	last := thread.Messages[len(thread.Messages)-1]
	if hasLabel(last.LabelIds, "SENT") {
		return nil
	}

	var headers []*gmail.MessagePartHeader
	if last.Payload != nil {
		headers = last.Payload.Headers
	}
	subject := getHeader(headers, "Subject")
	if subject == "" && thread.Messages[0].Payload != nil {
		subject = getHeader(thread.Messages[0].Payload.Headers, "Subject")
	}
	name, email := ParseFrom(getHeader(headers, "From"))

	return &StaleThread{
		ThreadID:   thread.Id,
		MessageID:  last.Id,
		Subject:    subject,
		FromName:   name,
		FromEmail:  email,
		Snippet:    html.UnescapeString(last.Snippet),
		ReceivedAt: time.UnixMilli(last.InternalDate),
		WebURL:     "https://mail.google.com/mail/u/0/#inbox/" + thread.Id,
	}
}

// ParseFrom splits a From header into display name and lower-cased address
func ParseFrom(from string) (string, string) {
	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Name, strings.ToLower(addr.Address)
	}
	// Extract name from "Name <email@example.com>" format
	if idx := strings.Index(from, "<"); idx >= 0 {
		name := strings.Trim(strings.TrimSpace(from[:idx]), `"`)
		email := strings.TrimSuffix(from[idx+1:], ">")
		return name, strings.ToLower(strings.TrimSpace(email))
	}
	return "", strings.ToLower(strings.TrimSpace(from))
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func hasLabel(labels []string, labelID string) bool {
	for _, label := range labels {
		if label == labelID {
			return true
		}
	}
	return false
}
