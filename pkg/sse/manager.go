package sse

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	clientBuffer      = 16
	keepAliveInterval = 30 * time.Second
)

// Event is one server-sent event
type Event struct {
	Type string
	Data interface{}
}

type subscription struct {
	userID string
	ch     chan Event
}

type delivery struct {
	userID string // empty for broadcast
	event  Event
}

// Manager fans events out to connected clients, keyed by user id.
// All registry changes happen on the Run goroutine.
type Manager struct {
	clients    map[string]map[chan Event]struct{}
	register   chan subscription
	unregister chan subscription
	messages   chan delivery
	done       chan struct{}
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]map[chan Event]struct{}),
		register:   make(chan subscription),
		unregister: make(chan subscription),
		messages:   make(chan delivery, 64),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and deliveries until Stop
func (m *Manager) Run() {
	for {
		select {
		case s := <-m.register:
			set, ok := m.clients[s.userID]
			if !ok {
				set = make(map[chan Event]struct{})
				m.clients[s.userID] = set
			}
			set[s.ch] = struct{}{}
			log.Printf("[SSE] Client connected for user %s (%d open)", s.userID, len(set))

		case s := <-m.unregister:
			if set, ok := m.clients[s.userID]; ok {
				if _, ok := set[s.ch]; ok {
					delete(set, s.ch)
					close(s.ch)
				}
				if len(set) == 0 {
					delete(m.clients, s.userID)
				}
			}

		case d := <-m.messages:
			if d.userID == "" {
				for _, set := range m.clients {
					deliver(set, d.event)
				}
				continue
			}
			deliver(m.clients[d.userID], d.event)

		case <-m.done:
			for userID, set := range m.clients {
				for ch := range set {
					close(ch)
				}
				delete(m.clients, userID)
			}
			return
		}
	}
}

// deliver drops the event for clients whose buffer is full
func deliver(set map[chan Event]struct{}, event Event) {
	for ch := range set {
		select {
		case ch <- event:
		default:
			log.Printf("[SSE] Dropping %s event for slow client", event.Type)
		}
	}
}

// Stop closes every client stream and ends Run
func (m *Manager) Stop() {
	close(m.done)
}

// SendToUser queues an event for every stream of one user
func (m *Manager) SendToUser(userID, eventType string, data interface{}) {
	m.enqueue(delivery{userID: userID, event: Event{Type: eventType, Data: data}})
}

// Broadcast queues an event for every connected client
func (m *Manager) Broadcast(eventType string, data interface{}) {
	m.enqueue(delivery{event: Event{Type: eventType, Data: data}})
}

func (m *Manager) enqueue(d delivery) {
	select {
	case m.messages <- d:
	case <-m.done:
	}
}

// ServeHTTP streams events to the caller until it disconnects
func (m *Manager) ServeHTTP(c *gin.Context, userID string) {
	sub := subscription{userID: userID, ch: make(chan Event, clientBuffer)}
	select {
	case m.register <- sub:
	case <-m.done:
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	defer func() {
		select {
		case m.unregister <- sub:
		case <-m.done:
		}
	}()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.SSEvent("connected", gin.H{"user_id": userID})
	c.Writer.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub.ch:
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event.Data)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"time": time.Now().Unix()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
