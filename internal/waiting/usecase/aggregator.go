package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"waiting-backend/internal/waiting/cache"
	"waiting-backend/internal/waiting/collab"
	"waiting-backend/internal/waiting/domain"

	"golang.org/x/sync/errgroup"
)

// ErrCurrentUserUnavailable aborts aggregation when the signed-in user cannot be resolved
var ErrCurrentUserUnavailable = errors.New("current user unavailable")

// CurrentUserProvider resolves the signed-in user
type CurrentUserProvider interface {
	CurrentUser(ctx context.Context) (domain.CurrentUser, error)
}

// RelationshipProvider supplies cached organizational context
type RelationshipProvider interface {
	Context(ctx context.Context) domain.RelationshipContext
	InvalidateAll()
}

// AvatarProvider supplies cached profile photos
type AvatarProvider interface {
	Prefetch(ctx context.Context, userIDs []string) map[string]string
	Invalidate()
}

// Sources are the four conversation streams. A nil source is skipped.
type Sources struct {
	Email   collab.Source
	Chat    collab.Source
	Channel collab.Source
	Mention collab.Source
}

// Aggregator orchestrates one refresh: sources, merge, identity, scoring,
// persisted state, avatars and grouping
type Aggregator struct {
	users         CurrentUserProvider
	relationships RelationshipProvider
	lookup        cache.UserLookup
	avatars       AvatarProvider
	sources       Sources
	now           func() time.Time

	mu       sync.Mutex
	me       *domain.CurrentUser
	resolver *cache.IdentityResolver

	slaMu sync.RWMutex
	slas  []domain.ResponseTimeSLA
}

func NewAggregator(
	users CurrentUserProvider,
	relationships RelationshipProvider,
	lookup cache.UserLookup,
	avatars AvatarProvider,
	sources Sources,
	now func() time.Time,
) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		users:         users,
		relationships: relationships,
		lookup:        lookup,
		avatars:       avatars,
		sources:       sources,
		now:           now,
	}
}

// SLATargets returns a copy of the configured response targets
func (a *Aggregator) SLATargets() []domain.ResponseTimeSLA {
	a.slaMu.RLock()
	defer a.slaMu.RUnlock()
	return append([]domain.ResponseTimeSLA(nil), a.slas...)
}

// SetSLATargets replaces the response targets
func (a *Aggregator) SetSLATargets(slas []domain.ResponseTimeSLA) {
	a.slaMu.Lock()
	a.slas = append([]domain.ResponseTimeSLA(nil), slas...)
	a.slaMu.Unlock()
}

// CurrentUser returns the signed-in user, cached after the first success
func (a *Aggregator) CurrentUser(ctx context.Context) (domain.CurrentUser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.me != nil {
		return *a.me, nil
	}
	me, err := a.users.CurrentUser(ctx)
	if err != nil {
		return domain.CurrentUser{}, fmt.Errorf("%w: %v", ErrCurrentUserUnavailable, err)
	}
	a.me = &me
	a.resolver = cache.NewIdentityResolver(a.lookup, me.Email)
	return me, nil
}

func (a *Aggregator) identityResolver() *cache.IdentityResolver {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolver
}

// InvalidateCaches drops relationship, identity and avatar caches
func (a *Aggregator) InvalidateCaches() {
	a.relationships.InvalidateAll()
	a.avatars.Invalidate()
	if r := a.identityResolver(); r != nil {
		r.Invalidate()
	}
}

// Collected is the scored conversation set before persisted state is applied
type Collected struct {
	Scored  []domain.Conversation
	Context domain.RelationshipContext
}

// GetWaitingData runs the full pipeline for filter against the given persisted state
func (a *Aggregator) GetWaitingData(ctx context.Context, filter domain.WaitingFilter, state domain.PersistedState) (*domain.GroupedWaitingData, error) {
	collected, err := a.Collect(ctx, filter)
	if err != nil {
		return nil, err
	}
	return a.Present(ctx, collected, state, filter.HideSnoozed), nil
}

// Collect fetches, merges, classifies and scores conversations for filter
func (a *Aggregator) Collect(ctx context.Context, filter domain.WaitingFilter) (*Collected, error) {
	me, err := a.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	now := a.now()

	rc := a.relationships.Context(ctx)

	req := collab.FetchRequest{
		Me:            me,
		MinStaleHours: filter.MinStaleDurationHours,
		MaxResults:    filter.MaxResults,
		Teams:         rc.Teams,
		Now:           now,
	}
	streams, mentions := a.fetchSources(ctx, filter, req)
	conversations := MergeConversations(streams, mentions)

	a.resolveSenders(ctx, conversations)

	orgDomain := me.Domain()
	slas := a.SLATargets()
	scored := make([]domain.Conversation, 0, len(conversations))
	for _, c := range conversations {
		c.StaleDurationHours = domain.StaleHours(c.ReceivedAt, now)
		c.Sender.Relationship = ClassifyRelationship(c.Sender, rc, orgDomain)
		if !filter.AllowsRelationship(c.Sender.Relationship) {
			continue
		}
		c.UrgencyScore, c.UrgencyFactors = ScoreUrgency(c, slas)
		scored = append(scored, c)
	}
	return &Collected{Scored: scored, Context: rc}, nil
}

// Present applies persisted state to a collected set, attaches avatars and
// groups the result. collected is not modified.
func (a *Aggregator) Present(ctx context.Context, collected *Collected, state domain.PersistedState, hideSnoozed bool) *domain.GroupedWaitingData {
	visible := ApplyState(collected.Scored, state, hideSnoozed, a.now())
	a.attachAvatars(ctx, visible)

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].UrgencyScore > visible[j].UrgencyScore
	})

	return BuildGroupedData(visible, collected.Context)
}

// fetchSources queries enabled sources concurrently. A failing source contributes nothing.
func (a *Aggregator) fetchSources(ctx context.Context, filter domain.WaitingFilter, req collab.FetchRequest) ([][]domain.Conversation, []domain.Conversation) {
	type slot struct {
		enabled bool
		source  collab.Source
	}
	slots := []slot{
		{filter.IncludeEmail, a.sources.Email},
		{filter.IncludeTeamsChats, a.sources.Chat},
		{filter.IncludeChannelMessages, a.sources.Channel},
		{filter.IncludeMentions, a.sources.Mention},
	}
	results := make([][]domain.Conversation, len(slots))

	var g errgroup.Group
	for i, s := range slots {
		if !s.enabled || s.source == nil {
			continue
		}
		g.Go(func() error {
			convs, err := s.source.Fetch(ctx, req)
			if err != nil {
				log.Printf("[Aggregator] Source %s failed: %v", s.source.Name(), err)
				return nil
			}
			results[i] = convs
			return nil
		})
	}
	_ = g.Wait()

	return results[:3], results[3]
}

// resolveSenders fills ids of email senders that arrived unresolved
func (a *Aggregator) resolveSenders(ctx context.Context, conversations []domain.Conversation) {
	resolver := a.identityResolver()
	if resolver == nil {
		return
	}
	var emails []string
	for _, c := range conversations {
		if c.Type == domain.ConversationEmail && c.Sender.ID == "" && c.Sender.Email != "" {
			emails = append(emails, c.Sender.Email)
		}
	}
	if len(emails) == 0 {
		return
	}
	ids := resolver.ResolveMany(ctx, emails)
	for i := range conversations {
		c := &conversations[i]
		if c.Type != domain.ConversationEmail || c.Sender.ID != "" {
			continue
		}
		if id, ok := ids[normalizeEmail(c.Sender.Email)]; ok {
			c.Sender.ID = id
		}
	}
}

func (a *Aggregator) attachAvatars(ctx context.Context, conversations []domain.Conversation) {
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range conversations {
		if c.Sender.ID == "" {
			continue
		}
		if _, ok := seen[c.Sender.ID]; ok {
			continue
		}
		seen[c.Sender.ID] = struct{}{}
		ids = append(ids, c.Sender.ID)
	}
	if len(ids) == 0 {
		return
	}
	photos := a.avatars.Prefetch(ctx, ids)
	for i := range conversations {
		if url, ok := photos[conversations[i].Sender.ID]; ok {
			conversations[i].Sender.PhotoURL = url
		}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
