package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"waiting-backend/internal/waiting/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	manager    *domain.Person
	reports    []domain.Person
	people     []domain.Person
	teams      []domain.Team
	reportsErr error

	managerCalls atomic.Int32
	reportsCalls atomic.Int32
}

func (f *fakeDirectory) Manager(context.Context) (*domain.Person, error) {
	f.managerCalls.Add(1)
	return f.manager, nil
}

func (f *fakeDirectory) DirectReports(context.Context) ([]domain.Person, error) {
	f.reportsCalls.Add(1)
	if f.reportsErr != nil {
		return nil, f.reportsErr
	}
	return f.reports, nil
}

func (f *fakeDirectory) FrequentCollaborators(context.Context) ([]domain.Person, error) {
	return f.people, nil
}

func (f *fakeDirectory) JoinedTeams(context.Context) ([]domain.Team, error) {
	return f.teams, nil
}

func TestRelationshipContextBuildsSets(t *testing.T) {
	dir := &fakeDirectory{
		manager: &domain.Person{ID: "boss", DisplayName: "Boss"},
		reports: []domain.Person{{ID: "r1"}, {ID: "r2"}},
		people:  []domain.Person{{ID: "p1"}, {ID: ""}},
		teams:   []domain.Team{{ID: "t1", DisplayName: "Platform"}},
	}
	c := NewRelationshipCache(dir, time.Minute, nil)

	rc := c.Context(context.Background())
	require.NotNil(t, rc.Manager)
	assert.Equal(t, "boss", rc.Manager.ID)
	assert.Len(t, rc.DirectReportIDs, 2)
	assert.Contains(t, rc.DirectReportIDs, "r1")
	assert.Len(t, rc.CollaboratorIDs, 1)
	assert.True(t, rc.HasTeam("t1"))
}

func TestRelationshipCacheCachesNoManager(t *testing.T) {
	dir := &fakeDirectory{}
	c := NewRelationshipCache(dir, time.Minute, nil)

	for i := 0; i < 3; i++ {
		m, err := c.Manager(context.Background())
		require.NoError(t, err)
		assert.Nil(t, m)
	}
	assert.Equal(t, int32(1), dir.managerCalls.Load())
}

func TestRelationshipCacheFailedSlotDegradesAndRetries(t *testing.T) {
	dir := &fakeDirectory{
		manager:    &domain.Person{ID: "boss"},
		reportsErr: errors.New("graph down"),
	}
	c := NewRelationshipCache(dir, time.Minute, nil)

	rc := c.Context(context.Background())
	assert.NotNil(t, rc.Manager)
	assert.Empty(t, rc.DirectReportIDs)

	c.Context(context.Background())
	assert.Equal(t, int32(2), dir.reportsCalls.Load(), "failures are not cached")
	assert.Equal(t, int32(1), dir.managerCalls.Load())
}

func TestRelationshipCacheExpiresAndInvalidates(t *testing.T) {
	clock := newClock()
	dir := &fakeDirectory{manager: &domain.Person{ID: "boss"}}
	c := NewRelationshipCache(dir, 5*time.Minute, clock.Now)

	_, _ = c.Manager(context.Background())
	clock.Advance(4 * time.Minute)
	_, _ = c.Manager(context.Background())
	assert.Equal(t, int32(1), dir.managerCalls.Load())

	clock.Advance(time.Minute)
	_, _ = c.Manager(context.Background())
	assert.Equal(t, int32(2), dir.managerCalls.Load())

	c.InvalidateAll()
	_, _ = c.Manager(context.Background())
	assert.Equal(t, int32(3), dir.managerCalls.Load())
}
