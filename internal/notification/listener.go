package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Refresher runs an out-of-band refresh
type Refresher interface {
	Trigger()
}

// MailboxNotification is the payload of a mailbox change message
type MailboxNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Listener subscribes to mailbox change notifications and triggers a refresh for each new one
type Listener struct {
	pubsubClient *pubsub.Client
	refresher    Refresher
	topicName    string
	subName      string

	mu sync.Mutex
	// Deduplication: last historyId seen per mailbox
	lastHistoryID map[string]uint64
}

// NewListener connects to Pub/Sub. topicName may be a full resource name;
// subName defaults to "<topic>-sub".
func NewListener(ctx context.Context, projectID, topicName, subName, credentialsFile string, refresher Refresher) (*Listener, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	l := newListener(refresher, ShortTopicName(topicName), subName)
	l.pubsubClient = client
	return l, nil
}

func newListener(refresher Refresher, topicName, subName string) *Listener {
	if subName == "" {
		subName = topicName + "-sub"
	}
	return &Listener{
		refresher:     refresher,
		topicName:     topicName,
		subName:       subName,
		lastHistoryID: make(map[string]uint64),
	}
}

// ShortTopicName strips the "projects/<p>/topics/" prefix from a topic resource name
func ShortTopicName(topic string) string {
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return topic
}

// Start receives messages until ctx is cancelled. The subscription is created
// on the topic when it does not exist yet.
func (l *Listener) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting listener with topic: %s, subscription: %s", l.topicName, l.subName)

	sub := l.pubsubClient.Subscription(l.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := l.pubsubClient.Topic(l.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic %s does not exist, cannot create subscription", l.topicName)
			return
		}

		sub, err = l.pubsubClient.CreateSubscription(ctx, l.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", l.subName)
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", l.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		l.HandleData(msg.Data)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

// Close releases the Pub/Sub client
func (l *Listener) Close() error {
	if l.pubsubClient == nil {
		return nil
	}
	return l.pubsubClient.Close()
}

// HandleData processes one message payload and reports whether it triggered a refresh
func (l *Listener) HandleData(data []byte) bool {
	var n MailboxNotification
	if err := json.Unmarshal(data, &n); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return false
	}
	mailbox := strings.ToLower(n.EmailAddress)

	l.mu.Lock()
	last, seen := l.lastHistoryID[mailbox]
	if seen && n.HistoryID <= last {
		l.mu.Unlock()
		log.Printf("[PubSub] Skipping duplicate notification for %s (historyId %d <= last %d)", mailbox, n.HistoryID, last)
		return false
	}
	l.lastHistoryID[mailbox] = n.HistoryID
	l.mu.Unlock()

	log.Printf("[PubSub] Mailbox %s changed (historyId: %d), triggering refresh", mailbox, n.HistoryID)
	l.refresher.Trigger()
	return true
}
