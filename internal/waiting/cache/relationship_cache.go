package cache

import (
	"context"
	"log"
	"time"

	"waiting-backend/internal/waiting/domain"

	"golang.org/x/sync/errgroup"
)

// DefaultRelationshipTTL is how long organizational context is trusted
const DefaultRelationshipTTL = 5 * time.Minute

const slotKey = "me"

// OrgDirectory answers the organizational questions behind relationship classification
type OrgDirectory interface {
	Manager(ctx context.Context) (*domain.Person, error)
	DirectReports(ctx context.Context) ([]domain.Person, error)
	FrequentCollaborators(ctx context.Context) ([]domain.Person, error)
	JoinedTeams(ctx context.Context) ([]domain.Team, error)
}

// RelationshipCache keeps four independently expiring slots of organizational context.
// A "none" answer (no manager, no reports) is cached like any other hit.
type RelationshipCache struct {
	directory     OrgDirectory
	manager       *TTLCache[string, *domain.Person]
	reports       *TTLCache[string, []domain.Person]
	collaborators *TTLCache[string, []domain.Person]
	teams         *TTLCache[string, []domain.Team]
}

// NewRelationshipCache creates a cache over directory
func NewRelationshipCache(directory OrgDirectory, ttl time.Duration, now func() time.Time) *RelationshipCache {
	if ttl <= 0 {
		ttl = DefaultRelationshipTTL
	}
	return &RelationshipCache{
		directory:     directory,
		manager:       NewTTLCache[string, *domain.Person](ttl, now),
		reports:       NewTTLCache[string, []domain.Person](ttl, now),
		collaborators: NewTTLCache[string, []domain.Person](ttl, now),
		teams:         NewTTLCache[string, []domain.Team](ttl, now),
	}
}

// Manager returns the cached manager (nil when the user has none)
func (c *RelationshipCache) Manager(ctx context.Context) (*domain.Person, error) {
	return c.manager.GetOrFetch(ctx, slotKey, c.directory.Manager)
}

// DirectReports returns the cached direct reports
func (c *RelationshipCache) DirectReports(ctx context.Context) ([]domain.Person, error) {
	return c.reports.GetOrFetch(ctx, slotKey, c.directory.DirectReports)
}

// FrequentCollaborators returns the cached collaborators
func (c *RelationshipCache) FrequentCollaborators(ctx context.Context) ([]domain.Person, error) {
	return c.collaborators.GetOrFetch(ctx, slotKey, c.directory.FrequentCollaborators)
}

// JoinedTeams returns the cached joined teams
func (c *RelationshipCache) JoinedTeams(ctx context.Context) ([]domain.Team, error) {
	return c.teams.GetOrFetch(ctx, slotKey, c.directory.JoinedTeams)
}

// Context loads all four slots concurrently. Each failed slot degrades to empty/absent.
func (c *RelationshipCache) Context(ctx context.Context) domain.RelationshipContext {
	var (
		manager       *domain.Person
		reports       []domain.Person
		collaborators []domain.Person
		teams         []domain.Team
	)

	var g errgroup.Group
	g.Go(func() error {
		m, err := c.Manager(ctx)
		if err != nil {
			log.Printf("[RelationshipCache] Failed to load manager: %v", err)
			return nil
		}
		manager = m
		return nil
	})
	g.Go(func() error {
		r, err := c.DirectReports(ctx)
		if err != nil {
			log.Printf("[RelationshipCache] Failed to load direct reports: %v", err)
			return nil
		}
		reports = r
		return nil
	})
	g.Go(func() error {
		p, err := c.FrequentCollaborators(ctx)
		if err != nil {
			log.Printf("[RelationshipCache] Failed to load frequent collaborators: %v", err)
			return nil
		}
		collaborators = p
		return nil
	})
	g.Go(func() error {
		t, err := c.JoinedTeams(ctx)
		if err != nil {
			log.Printf("[RelationshipCache] Failed to load joined teams: %v", err)
			return nil
		}
		teams = t
		return nil
	})
	_ = g.Wait()

	return domain.RelationshipContext{
		Manager:         manager,
		DirectReportIDs: domain.IDSet(reports),
		CollaboratorIDs: domain.IDSet(collaborators),
		Teams:           teams,
	}
}

// InvalidateAll drops every slot unconditionally
func (c *RelationshipCache) InvalidateAll() {
	c.manager.InvalidateAll()
	c.reports.InvalidateAll()
	c.collaborators.InvalidateAll()
	c.teams.InvalidateAll()
}
