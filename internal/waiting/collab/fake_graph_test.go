package collab

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"waiting-backend/pkg/graph"
)

type fakeGraph struct {
	me            graph.User
	manager       *graph.User
	reports       []graph.User
	people        []graph.User
	teams         []graph.Team
	channels      map[string][]graph.Channel
	channelMsgs   map[string][]graph.ChatMessage
	chats         []graph.Chat
	chatMsgs      map[string][]graph.ChatMessage
	inbox         []graph.Message
	sent          map[string]time.Time
	users         map[string]string
	photos        map[string][]byte
	throttled     map[string]bool
	photoErrs     map[string]error
	photoCalls    []string
	failTeams     map[string]bool
	batchErr      error
	batchRequests [][]graph.BatchRequest
}

func (f *fakeGraph) Me(context.Context) (*graph.User, error) { return &f.me, nil }

func (f *fakeGraph) Manager(context.Context) (*graph.User, error) { return f.manager, nil }

func (f *fakeGraph) DirectReports(context.Context) ([]graph.User, error) { return f.reports, nil }

func (f *fakeGraph) People(context.Context, int) ([]graph.User, error) { return f.people, nil }

func (f *fakeGraph) JoinedTeams(context.Context) ([]graph.Team, error) { return f.teams, nil }

func (f *fakeGraph) Channels(_ context.Context, teamID string) ([]graph.Channel, error) {
	if f.failTeams[teamID] {
		return nil, errors.New("forbidden")
	}
	return f.channels[teamID], nil
}

func (f *fakeGraph) ChannelMessages(_ context.Context, teamID, channelID string, _ int) ([]graph.ChatMessage, error) {
	return f.channelMsgs[teamID+"/"+channelID], nil
}

func (f *fakeGraph) Chats(context.Context, int) ([]graph.Chat, error) { return f.chats, nil }

func (f *fakeGraph) ChatMessages(_ context.Context, chatID string, _ int) ([]graph.ChatMessage, error) {
	return f.chatMsgs[chatID], nil
}

func (f *fakeGraph) InboxMessages(_ context.Context, cutoff time.Time, _ int) ([]graph.Message, error) {
	var out []graph.Message
	for _, m := range f.inbox {
		if !m.ReceivedDateTime.After(cutoff) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeGraph) SentConversations(context.Context, time.Time) (map[string]time.Time, error) {
	return f.sent, nil
}

func (f *fakeGraph) UserByEmail(_ context.Context, email string) (*graph.User, error) {
	if id, ok := f.users[email]; ok {
		return &graph.User{ID: id, Mail: email}, nil
	}
	return nil, nil
}

func (f *fakeGraph) Photo(_ context.Context, userID string) ([]byte, string, error) {
	f.photoCalls = append(f.photoCalls, userID)
	if err := f.photoErrs[userID]; err != nil {
		return nil, "", err
	}
	data, ok := f.photos[userID]
	if !ok {
		return nil, "", nil
	}
	return data, "image/png", nil
}

func (f *fakeGraph) Batch(_ context.Context, requests []graph.BatchRequest) ([]graph.BatchResponse, error) {
	f.batchRequests = append(f.batchRequests, requests)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	var out []graph.BatchResponse
	for _, r := range requests {
		switch {
		case strings.HasPrefix(r.URL, "/users/") && strings.Contains(r.URL, "/photos/"):
			id := strings.TrimPrefix(r.URL, "/users/")
			id = id[:strings.Index(id, "/")]
			if f.throttled[id] {
				out = append(out, graph.BatchResponse{ID: r.ID, Status: 429})
				continue
			}
			data, ok := f.photos[id]
			if !ok {
				out = append(out, graph.BatchResponse{ID: r.ID, Status: 404})
				continue
			}
			body, _ := json.Marshal(base64.StdEncoding.EncodeToString(data))
			out = append(out, graph.BatchResponse{ID: r.ID, Status: 200, Headers: map[string]string{"Content-Type": "image/png"}, Body: body})
		default:
			email := strings.TrimPrefix(r.URL, "/users/")
			email = email[:strings.Index(email, "?")]
			id, ok := f.users[email]
			if !ok {
				out = append(out, graph.BatchResponse{ID: r.ID, Status: 404})
				continue
			}
			body, _ := json.Marshal(graph.User{ID: id, Mail: email})
			out = append(out, graph.BatchResponse{ID: r.ID, Status: 200, Body: body})
		}
	}
	return out, nil
}

func user(id, name string) *graph.IdentitySet {
	return &graph.IdentitySet{User: &graph.Identity{ID: id, DisplayName: name}}
}

func mention(id string) graph.Mention {
	return graph.Mention{Mentioned: user(id, "")}
}
