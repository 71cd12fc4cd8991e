package collab

import (
	"context"
	"errors"
	"testing"
	"time"

	"waiting-backend/internal/waiting/domain"
	"waiting-backend/pkg/gmail"
	"waiting-backend/pkg/imap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeThreads struct {
	threads []gmail.StaleThread
	err     error
	access  []string
	limit   int
	cutoff  time.Time
	refresh *oauth2.Token
}

func (f *fakeThreads) ListStaleThreads(_ context.Context, accessToken, _ string, cutoff time.Time, limit int, onTokenRefresh gmail.TokenUpdateFunc) ([]gmail.StaleThread, error) {
	f.access = append(f.access, accessToken)
	f.cutoff = cutoff
	f.limit = limit
	if f.refresh != nil {
		_ = onTokenRefresh(f.refresh)
	}
	return f.threads, f.err
}

func (f *fakeThreads) Watch(_ context.Context, accessToken, _ string, topicName string, _ gmail.TokenUpdateFunc) error {
	f.access = append(f.access, accessToken+"@"+topicName)
	return nil
}

var (
	mailNow = time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
	mailReq = FetchRequest{
		Me:            domain.CurrentUser{ID: "me", Email: "me@contoso.com"},
		MinStaleHours: 24,
		Now:           mailNow,
	}
)

func TestGmailSourceMapsThreadsAndRotatesTokens(t *testing.T) {
	svc := &fakeThreads{
		threads: []gmail.StaleThread{
			{ThreadID: "t1", Subject: "Can you review?", FromName: "Dana", FromEmail: "Dana@Contoso.com", Snippet: "by Friday please", ReceivedAt: mailNow.Add(-30 * time.Hour), WebURL: "https://mail.google.com/mail/#all/t1"},
			{ThreadID: "t2", Subject: "note to self", FromEmail: "ME@contoso.com"},
		},
		refresh: &oauth2.Token{AccessToken: "fresh"},
	}
	src := NewGmailSource(svc, "stale", "refresh")

	convs, err := src.Fetch(context.Background(), mailReq)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	c := convs[0]
	assert.Equal(t, "email:t1", c.ID)
	assert.Equal(t, domain.ConversationEmail, c.Type)
	assert.Equal(t, "dana@contoso.com", c.Sender.Email)
	assert.Empty(t, c.Sender.ID)
	assert.True(t, c.IsQuestion)
	assert.True(t, c.HasDeadlineMention)
	assert.Equal(t, mailNow.Add(-24*time.Hour), svc.cutoff)
	assert.Equal(t, defaultEmailLimit, svc.limit)

	svc.refresh = nil
	_, err = src.Fetch(context.Background(), mailReq)
	require.NoError(t, err)
	require.NoError(t, src.Watch(context.Background(), svc, "projects/p/topics/gmail"))
	assert.Equal(t, []string{"stale", "fresh", "fresh@projects/p/topics/gmail"}, svc.access)
}

func TestGmailSourceWrapsErrors(t *testing.T) {
	boom := errors.New("quota")
	_, err := NewGmailSource(&fakeThreads{err: boom}, "a", "r").Fetch(context.Background(), mailReq)
	assert.ErrorIs(t, err, boom)
}

type fakeMailbox struct {
	messages []imap.Message
	limit    int
}

func (f *fakeMailbox) ListUnanswered(_ context.Context, _ time.Time, limit int) ([]imap.Message, error) {
	f.limit = limit
	return f.messages, nil
}

func TestIMAPSourceBuildsIDs(t *testing.T) {
	mb := &fakeMailbox{messages: []imap.Message{
		{UID: 7, MessageID: "<abc@mx>", Subject: "Invoice", FromEmail: "billing@vendor.io", Text: "<p>Pay &amp; go</p>", ReceivedAt: mailNow.Add(-50 * time.Hour)},
		{UID: 9, Subject: "Hi", FromEmail: "x@contoso.com"},
		{UID: 11, FromEmail: "me@contoso.com"},
	}}
	req := mailReq
	req.MaxResults = 5

	convs, err := NewIMAPSource(mb).Fetch(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "email:<abc@mx>", convs[0].ID)
	assert.Equal(t, "Pay & go", convs[0].Preview)
	assert.Equal(t, "email:uid-9", convs[1].ID)
	assert.Equal(t, 5, mb.limit)
}
