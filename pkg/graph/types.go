package graph

import (
	"encoding/json"
	"time"
)

// User is a directory user (also used for people results)
type User struct {
	ID                   string        `json:"id"`
	DisplayName          string        `json:"displayName"`
	Mail                 string        `json:"mail"`
	UserPrincipalName    string        `json:"userPrincipalName"`
	ScoredEmailAddresses []ScoredEmail `json:"scoredEmailAddresses,omitempty"`
	PersonType           *PersonType   `json:"personType,omitempty"`
}

// ScoredEmail is an address entry on a people result
type ScoredEmail struct {
	Address        string  `json:"address"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// PersonType classifies a people result
type PersonType struct {
	Class    string `json:"class"`
	Subclass string `json:"subclass"`
}

// PrimaryEmail returns mail, else the first scored address, else the UPN
func (u User) PrimaryEmail() string {
	if u.Mail != "" {
		return u.Mail
	}
	if len(u.ScoredEmailAddresses) > 0 {
		return u.ScoredEmailAddresses[0].Address
	}
	return u.UserPrincipalName
}

// Team is a joined team
type Team struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	WebURL      string `json:"webUrl"`
}

// Channel is a team channel
type Channel struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	WebURL         string `json:"webUrl"`
	MembershipType string `json:"membershipType"`
}

// ItemBody is message content
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Identity is a user reference inside chat payloads
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// IdentitySet is the sender of a chat message
type IdentitySet struct {
	User        *Identity `json:"user,omitempty"`
	Application *Identity `json:"application,omitempty"`
}

// UserID returns the sending user's id, or ""
func (s *IdentitySet) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// Mention is an @mention inside a chat message
type Mention struct {
	ID          int          `json:"id"`
	MentionText string       `json:"mentionText"`
	Mentioned   *IdentitySet `json:"mentioned,omitempty"`
}

// ChannelIdentity locates a channel message
type ChannelIdentity struct {
	TeamID    string `json:"teamId"`
	ChannelID string `json:"channelId"`
}

// ChatMessage is a chat or channel message
type ChatMessage struct {
	ID                   string           `json:"id"`
	ReplyToID            string           `json:"replyToId"`
	ChatID               string           `json:"chatId"`
	MessageType          string           `json:"messageType"`
	Subject              string           `json:"subject"`
	CreatedDateTime      time.Time        `json:"createdDateTime"`
	LastModifiedDateTime time.Time        `json:"lastModifiedDateTime"`
	DeletedDateTime      *time.Time       `json:"deletedDateTime,omitempty"`
	Body                 ItemBody         `json:"body"`
	From                 *IdentitySet     `json:"from,omitempty"`
	Mentions             []Mention        `json:"mentions"`
	WebURL               string           `json:"webUrl"`
	ChannelIdentity      *ChannelIdentity `json:"channelIdentity,omitempty"`
	Replies              []ChatMessage    `json:"replies,omitempty"`
}

// MentionsUser reports whether userID is @mentioned in the message
func (m ChatMessage) MentionsUser(userID string) bool {
	for _, mention := range m.Mentions {
		if mention.Mentioned.UserID() == userID {
			return true
		}
	}
	return false
}

// LastActivity returns the newest reply, or the message itself
func (m ChatMessage) LastActivity() ChatMessage {
	last := m
	for _, r := range m.Replies {
		if r.CreatedDateTime.After(last.CreatedDateTime) {
			last = r
		}
	}
	return last
}

// RepliedBy reports whether userID authored any reply
func (m ChatMessage) RepliedBy(userID string) bool {
	for _, r := range m.Replies {
		if r.From.UserID() == userID {
			return true
		}
	}
	return false
}

// MessagePreview is the last message of a chat
type MessagePreview struct {
	ID              string       `json:"id"`
	CreatedDateTime time.Time    `json:"createdDateTime"`
	IsDeleted       bool         `json:"isDeleted"`
	MessageType     string       `json:"messageType"`
	Body            ItemBody     `json:"body"`
	From            *IdentitySet `json:"from,omitempty"`
}

// Chat is a 1:1, group or meeting chat
type Chat struct {
	ID                 string          `json:"id"`
	Topic              string          `json:"topic"`
	ChatType           string          `json:"chatType"`
	WebURL             string          `json:"webUrl"`
	LastMessagePreview *MessagePreview `json:"lastMessagePreview,omitempty"`
}

// EmailAddress is a mail recipient/sender
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Recipient wraps an EmailAddress
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// Message is a mail message
type Message struct {
	ID               string     `json:"id"`
	ConversationID   string     `json:"conversationId"`
	Subject          string     `json:"subject"`
	BodyPreview      string     `json:"bodyPreview"`
	From             *Recipient `json:"from,omitempty"`
	ReceivedDateTime time.Time  `json:"receivedDateTime"`
	SentDateTime     time.Time  `json:"sentDateTime"`
	WebLink          string     `json:"webLink"`
	IsRead           bool       `json:"isRead"`
}

// BatchRequest is one sub-request of a $batch call
type BatchRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

// BatchResponse is one sub-response of a $batch call
type BatchResponse struct {
	ID      string            `json:"id"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}
