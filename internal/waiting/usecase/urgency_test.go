package usecase

import (
	"testing"

	"waiting-backend/internal/waiting/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreUrgencyManagerQuestionDeadline(t *testing.T) {
	c := domain.Conversation{
		StaleDurationHours: 200,
		Sender:             domain.Person{Relationship: domain.RelationshipManager},
		IsQuestion:         true,
		HasDeadlineMention: true,
	}

	score, factors := ScoreUrgency(c, nil)
	assert.Equal(t, 10, score)
	require.Len(t, factors, 4)

	tags := make([]string, len(factors))
	points := make([]int, len(factors))
	for i, f := range factors {
		tags[i] = f.Factor
		points[i] = f.Points
	}
	assert.Equal(t, []string{
		domain.FactorWaitTimeExtreme,
		domain.FactorSenderManager,
		domain.FactorContentQuestion,
		domain.FactorContentDeadline,
	}, tags)
	assert.Equal(t, []int{3, 2, 1, 2}, points)
}

func TestScoreUrgencyWaitBuckets(t *testing.T) {
	cases := []struct {
		hours int
		score int
		tag   string
	}{
		{hours: 24, score: 5},
		{hours: 48, score: 5},
		{hours: 49, score: 6, tag: domain.FactorWaitTimeMedium},
		{hours: 72, score: 6, tag: domain.FactorWaitTimeMedium},
		{hours: 73, score: 7, tag: domain.FactorWaitTimeHigh},
		{hours: 168, score: 7, tag: domain.FactorWaitTimeHigh},
		{hours: 169, score: 8, tag: domain.FactorWaitTimeExtreme},
	}
	for _, tc := range cases {
		score, factors := ScoreUrgency(domain.Conversation{StaleDurationHours: tc.hours}, nil)
		assert.Equal(t, tc.score, score, "hours=%d", tc.hours)
		if tc.tag == "" {
			assert.Empty(t, factors)
			continue
		}
		require.Len(t, factors, 1)
		assert.Equal(t, tc.tag, factors[0].Factor)
	}
}

func TestScoreUrgencySLABreach(t *testing.T) {
	slas := []domain.ResponseTimeSLA{
		{Relationship: domain.RelationshipManager, MaxHours: 24},
		{Relationship: domain.RelationshipDirectReport, MaxHours: 48},
	}
	c := domain.Conversation{
		StaleDurationHours: 30,
		Sender:             domain.Person{Relationship: domain.RelationshipDirectReport},
	}
	score, factors := ScoreUrgency(c, slas)
	assert.Equal(t, 6, score)
	require.Len(t, factors, 1)

	c.StaleDurationHours = 50
	score, factors = ScoreUrgency(c, slas)
	assert.Equal(t, 5+1+1+2, score)
	last := factors[len(factors)-1]
	assert.Equal(t, domain.FactorSLABreach, last.Factor)
	assert.Equal(t, 2, last.Points)
	assert.Equal(t, "Exceeds 48h response target for direct-report", last.Description)
}

func TestScoreUrgencyStaysInRangeAndIsDeterministic(t *testing.T) {
	relationships := []domain.Relationship{
		domain.RelationshipManager, domain.RelationshipDirectReport, domain.RelationshipFrequent,
		domain.RelationshipExternal, domain.RelationshipSameTeam, domain.RelationshipOther,
	}
	slas := []domain.ResponseTimeSLA{{Relationship: domain.RelationshipExternal, MaxHours: 1}}
	for _, hours := range []int{0, 50, 100, 500} {
		for _, rel := range relationships {
			for mask := 0; mask < 8; mask++ {
				c := domain.Conversation{
					StaleDurationHours: hours,
					Sender:             domain.Person{Relationship: rel},
					IsQuestion:         mask&1 != 0,
					HasDeadlineMention: mask&2 != 0,
					IsMention:          mask&4 != 0,
				}
				score, factors := ScoreUrgency(c, slas)
				assert.GreaterOrEqual(t, score, domain.BaseUrgency)
				assert.LessOrEqual(t, score, domain.MaxUrgency)

				again, againFactors := ScoreUrgency(c, slas)
				assert.Equal(t, score, again)
				assert.Equal(t, factors, againFactors)
			}
		}
	}
}

func TestUrgencyLevel(t *testing.T) {
	assert.Equal(t, "critical", UrgencyLevel(9))
	assert.Equal(t, "high", UrgencyLevel(7))
	assert.Equal(t, "normal", UrgencyLevel(6))
}
