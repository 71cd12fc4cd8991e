package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"waiting-backend/internal/waiting/domain"
	"waiting-backend/pkg/graph"
)

const collaboratorLimit = 25

// GraphAPI is the subset of the collaboration API used by the adapters
type GraphAPI interface {
	Me(ctx context.Context) (*graph.User, error)
	Manager(ctx context.Context) (*graph.User, error)
	DirectReports(ctx context.Context) ([]graph.User, error)
	People(ctx context.Context, top int) ([]graph.User, error)
	JoinedTeams(ctx context.Context) ([]graph.Team, error)
	Channels(ctx context.Context, teamID string) ([]graph.Channel, error)
	ChannelMessages(ctx context.Context, teamID, channelID string, top int) ([]graph.ChatMessage, error)
	Chats(ctx context.Context, top int) ([]graph.Chat, error)
	ChatMessages(ctx context.Context, chatID string, top int) ([]graph.ChatMessage, error)
	InboxMessages(ctx context.Context, cutoff time.Time, top int) ([]graph.Message, error)
	SentConversations(ctx context.Context, since time.Time) (map[string]time.Time, error)
	UserByEmail(ctx context.Context, email string) (*graph.User, error)
	Photo(ctx context.Context, userID string) ([]byte, string, error)
	Batch(ctx context.Context, requests []graph.BatchRequest) ([]graph.BatchResponse, error)
}

var _ GraphAPI = (*graph.Client)(nil)

func toPerson(u graph.User) domain.Person {
	return domain.Person{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.PrimaryEmail(),
	}
}

func identityPerson(set *graph.IdentitySet) domain.Person {
	if set == nil || set.User == nil {
		return domain.Person{}
	}
	return domain.Person{ID: set.User.ID, DisplayName: set.User.DisplayName}
}

// Directory answers organizational questions from the collaboration API
type Directory struct {
	api GraphAPI
}

// NewDirectory creates a Directory
func NewDirectory(api GraphAPI) *Directory {
	return &Directory{api: api}
}

// CurrentUser returns the signed-in user
func (d *Directory) CurrentUser(ctx context.Context) (domain.CurrentUser, error) {
	me, err := d.api.Me(ctx)
	if err != nil {
		return domain.CurrentUser{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return domain.CurrentUser{ID: me.ID, Email: me.PrimaryEmail(), DisplayName: me.DisplayName}, nil
}

func (d *Directory) Manager(ctx context.Context) (*domain.Person, error) {
	u, err := d.api.Manager(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get manager: %w", err)
	}
	if u == nil {
		return nil, nil
	}
	p := toPerson(*u)
	p.Relationship = domain.RelationshipManager
	return &p, nil
}

func (d *Directory) DirectReports(ctx context.Context) ([]domain.Person, error) {
	users, err := d.api.DirectReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get direct reports: %w", err)
	}
	people := make([]domain.Person, 0, len(users))
	for _, u := range users {
		p := toPerson(u)
		p.Relationship = domain.RelationshipDirectReport
		people = append(people, p)
	}
	return people, nil
}

// FrequentCollaborators returns relevant people who are organization users
func (d *Directory) FrequentCollaborators(ctx context.Context) ([]domain.Person, error) {
	users, err := d.api.People(ctx, collaboratorLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get people: %w", err)
	}
	people := make([]domain.Person, 0, len(users))
	for _, u := range users {
		if u.PersonType != nil && u.PersonType.Subclass != "" && u.PersonType.Subclass != "OrganizationUser" {
			continue
		}
		p := toPerson(u)
		p.Relationship = domain.RelationshipFrequent
		people = append(people, p)
	}
	return people, nil
}

func (d *Directory) JoinedTeams(ctx context.Context) ([]domain.Team, error) {
	teams, err := d.api.JoinedTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get joined teams: %w", err)
	}
	out := make([]domain.Team, 0, len(teams))
	for _, t := range teams {
		out = append(out, domain.Team{ID: t.ID, DisplayName: t.DisplayName, WebURL: t.WebURL, Type: "team"})
	}
	return out, nil
}

// UserLookup resolves emails through user lookups and the batch endpoint
type UserLookup struct {
	api GraphAPI
}

func NewUserLookup(api GraphAPI) *UserLookup {
	return &UserLookup{api: api}
}

func (l *UserLookup) LookupUser(ctx context.Context, email string) (string, error) {
	u, err := l.api.UserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", nil
	}
	return u.ID, nil
}

func (l *UserLookup) LookupUsers(ctx context.Context, emails []string) (map[string]string, error) {
	requests := make([]graph.BatchRequest, len(emails))
	for i, email := range emails {
		requests[i] = graph.BatchRequest{ID: strconv.Itoa(i), Method: http.MethodGet, URL: graph.UserByEmailPath(email)}
	}
	responses, err := l.api.Batch(ctx, requests)
	if err != nil {
		return nil, fmt.Errorf("user batch failed: %w", err)
	}

	ids := make(map[string]string, len(emails))
	for _, resp := range responses {
		idx, err := strconv.Atoi(resp.ID)
		if err != nil || idx < 0 || idx >= len(emails) || resp.Status != http.StatusOK {
			continue
		}
		var u graph.User
		if err := json.Unmarshal(resp.Body, &u); err != nil || u.ID == "" {
			continue
		}
		ids[strings.ToLower(emails[idx])] = u.ID
	}
	return ids, nil
}

// PhotoFetcher loads small profile photos through the batch endpoint.
// Photos the batch could not deliver are fetched one request at a time.
type PhotoFetcher struct {
	api GraphAPI
}

func NewPhotoFetcher(api GraphAPI) *PhotoFetcher {
	return &PhotoFetcher{api: api}
}

// FetchPhotos returns data URLs keyed by user id. Users without a photo, and
// users whose photo failed even on its own, are absent.
func (f *PhotoFetcher) FetchPhotos(ctx context.Context, userIDs []string) (map[string]string, error) {
	requests := make([]graph.BatchRequest, len(userIDs))
	for i, id := range userIDs {
		requests[i] = graph.BatchRequest{ID: strconv.Itoa(i), Method: http.MethodGet, URL: graph.PhotoPath(id)}
	}

	photos := make(map[string]string, len(userIDs))
	responses, err := f.api.Batch(ctx, requests)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("photo batch failed: %w", err)
		}
		log.Printf("[PhotoFetcher] Batch of %d failed, fetching individually: %v", len(userIDs), err)
		return photos, f.fetchEach(ctx, userIDs, photos)
	}

	answered := make([]bool, len(userIDs))
	var retry []string
	for _, resp := range responses {
		idx, err := strconv.Atoi(resp.ID)
		if err != nil || idx < 0 || idx >= len(userIDs) || answered[idx] {
			continue
		}
		answered[idx] = true
		if url, ok := graph.DataURL(resp); ok {
			photos[userIDs[idx]] = url
			continue
		}
		if resp.Status >= http.StatusBadRequest && resp.Status != http.StatusNotFound {
			retry = append(retry, userIDs[idx])
		}
	}
	for i, ok := range answered {
		if !ok {
			retry = append(retry, userIDs[i])
		}
	}
	return photos, f.fetchEach(ctx, retry, photos)
}

// fetchEach loads photos one by one into photos. Only a cancelled ctx is an error.
func (f *PhotoFetcher) fetchEach(ctx context.Context, userIDs []string, photos map[string]string) error {
	for _, id := range userIDs {
		data, contentType, err := f.api.Photo(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("photo fetch interrupted: %w", ctx.Err())
			}
			log.Printf("[PhotoFetcher] Photo for %s failed: %v", id, err)
			continue
		}
		if len(data) > 0 {
			photos[id] = graph.EncodeDataURL(data, contentType)
		}
	}
	return nil
}
