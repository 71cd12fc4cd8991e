package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, LevenshteinDistance("Budget", "budget"))
	assert.Equal(t, 2, LevenshteinDistance("budget", "budgte"))
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 5, LevenshteinDistance("", "hello"))
}

func TestMatchToleratesTyposAndAccents(t *testing.T) {
	assert.True(t, Match("budgte", "Q3 budget review", 2))
	assert.True(t, Match("jose", "José Álvarez", 1))
	assert.True(t, Match("rev", "Q3 budget review", 1))
	assert.False(t, Match("invoice", "Q3 budget review", 2))
	assert.False(t, Match("", "anything", 2))
}

func TestScoreRanksExactAboveFuzzy(t *testing.T) {
	exact := Score("budget", Field{Text: "Budget approval", Weight: 100})
	fuzzy := Score("budget", Field{Text: "Budgte approval", Weight: 100})
	none := Score("budget", Field{Text: "Lunch plans", Weight: 100})

	assert.Greater(t, exact, fuzzy)
	assert.Greater(t, fuzzy, 0.0)
	assert.Zero(t, none)
}
