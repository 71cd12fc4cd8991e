package imap

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const (
	dialTimeout  = 30 * time.Second
	maxTextBytes = 16 * 1024
)

// Config holds mailbox credentials
type Config struct {
	Server   string
	Port     int
	Username string
	Password string
}

// Message is an unanswered inbox message
type Message struct {
	UID        uint32
	MessageID  string
	Subject    string
	FromName   string
	FromEmail  string
	Text       string
	ReceivedAt time.Time
}

type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	return &Service{cfg: cfg}
}

func (s *Service) connect(ctx context.Context) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server, s.cfg.Port)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	c.Timeout = dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < c.Timeout {
			c.Timeout = remaining
		}
	}
	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return c, nil
}

// ListUnanswered returns up to limit INBOX messages received before cutoff that
// carry no \Answered flag and were not sent by the mailbox owner, newest first
func (s *Service) ListUnanswered(ctx context.Context, cutoff time.Time, limit int) ([]Message, error) {
	c, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Before = cutoff
	criteria.WithoutFlags = []string{imap.AnsweredFlag, imap.DeletedFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search INBOX: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	owner := strings.ToLower(s.cfg.Username)
	var out []Message
	for msg := range messages {
		m := toMessage(msg, section)
		if m.FromEmail == "" || m.FromEmail == owner {
			continue
		}
		out = append(out, m)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func toMessage(msg *imap.Message, section *imap.BodySectionName) Message {
	m := Message{UID: msg.Uid, ReceivedAt: msg.InternalDate}
	if env := msg.Envelope; env != nil {
		m.MessageID = strings.Trim(env.MessageId, "<>")
		m.Subject = env.Subject
		if len(env.From) > 0 {
			m.FromName = env.From[0].PersonalName
			m.FromEmail = strings.ToLower(env.From[0].Address())
		}
		if m.ReceivedAt.IsZero() {
			m.ReceivedAt = env.Date
		}
	}
	if body := msg.GetBody(section); body != nil {
		text, err := ExtractText(body)
		if err != nil {
			log.Printf("[IMAP] Failed to read body of UID %d: %v", msg.Uid, err)
		}
		m.Text = text
	}
	return m
}

// ExtractText returns the first text part of an RFC 822 message, preferring text/plain
func ExtractText(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", err
	}
	defer mr.Close()

	var htmlText string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return htmlText, err
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		data, err := io.ReadAll(io.LimitReader(p.Body, maxTextBytes))
		if err != nil {
			return htmlText, err
		}
		switch contentType {
		case "text/plain":
			return string(data), nil
		case "text/html":
			if htmlText == "" {
				htmlText = string(data)
			}
		}
	}
	return htmlText, nil
}
