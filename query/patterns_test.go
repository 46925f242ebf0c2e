package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAggregation(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"Which clients have both expressed a preference and complained about a service charge?", true},
		{"Who has a Ferrari?", true},
		{"How many members booked a yacht?", true},
		{"List all clients who visited museums", true},
		{"Does anyone want both Nobu and Zuma?", true},
		{"Who reported a billing issue?", true},
		{"Hans wants sushi and also a late checkout", true},
		{"Compare the dining preferences of Hans and Layla", false},
		{"What are Hans's preferences?", false},
		{"Whose dinner was cancelled?", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAggregation(tt.query))
		})
	}
}

func TestNormalized_Match(t *testing.T) {
	n := normalize("Any restaurants near the Hotel? What to do there!")

	term, ok := n.match(specificAttributes)
	assert.True(t, ok)
	assert.Equal(t, "restaurant", term, "plural query words match singular terms")

	term, ok = n.match(conceptualKeywords)
	assert.True(t, ok)
	assert.Equal(t, "what to do", term)

	_, ok = normalize("Stop the bus").match([]string{"top", "bus stop"})
	assert.False(t, ok, "terms never match inside a word")

	term, ok = normalize("Hans compared flights").match(comparisonKeywords)
	assert.True(t, ok)
	assert.Equal(t, "compare", term, "terms match inflected words they start")

	term, ok = normalize("travelling plans").match(specificAttributes)
	assert.True(t, ok)
	assert.Equal(t, "travel", term)
}

func TestNormalized_DualCondition(t *testing.T) {
	assert.True(t, normalize("both the spa and the gym").dualCondition())
	assert.False(t, normalize("the spa and both gyms").dualCondition())
	assert.False(t, normalize("both of them").dualCondition())
}
