package gmail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

func message(id string, labels []string, from string, at time.Time) *gmail.Message {
	return &gmail.Message{
		Id:           id,
		LabelIds:     labels,
		InternalDate: at.UnixMilli(),
		Snippet:      "Can you review &amp; sign?",
		Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
			{Name: "From", Value: from},
			{Name: "Subject", Value: "Contract"},
		}},
	}
}

func TestToStaleThreadSkipsThreadsEndingWithSentMail(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	thread := &gmail.Thread{Id: "t1", Messages: []*gmail.Message{
		message("m1", []string{"INBOX"}, "Ann <ann@contoso.com>", at),
		message("m2", []string{"SENT"}, "Me <me@contoso.com>", at.Add(time.Hour)),
	}}
	assert.Nil(t, toStaleThread(thread))
}

func TestToStaleThreadUsesNewestInboundMessage(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	thread := &gmail.Thread{Id: "t1", Messages: []*gmail.Message{
		message("m1", []string{"SENT"}, "Me <me@contoso.com>", at),
		message("m2", []string{"INBOX"}, `"Ann Lee" <Ann@Contoso.com>`, at.Add(time.Hour)),
	}}
	got := toStaleThread(thread)
	require.NotNil(t, got)
	assert.Equal(t, "m2", got.MessageID)
	assert.Equal(t, "Ann Lee", got.FromName)
	assert.Equal(t, "ann@contoso.com", got.FromEmail)
	assert.Equal(t, "Can you review & sign?", got.Snippet)
	assert.True(t, got.ReceivedAt.Equal(at.Add(time.Hour)))
}

func TestParseFromFallsBackOnMalformedHeader(t *testing.T) {
	name, email := ParseFrom("Bob Smith <BOB@example.com")
	assert.Equal(t, "Bob Smith", name)
	assert.Equal(t, "bob@example.com", email)
}

func TestStaleInboxQuery(t *testing.T) {
	cutoff := time.Unix(1700000000, 0)
	assert.Equal(t, "in:inbox -from:me before:1700000000", StaleInboxQuery(cutoff))
}
