package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWineMargin(t *testing.T) {
	assert.Equal(t, 10.0, Wine{Price: 25, Cost: 15}.Margin())
	assert.Equal(t, 25.0, Wine{Price: 25}.Margin())
	assert.Equal(t, 0.0, Wine{Price: 10, Cost: 12}.Margin(), "margin never goes negative")
}

func TestCanonicalBudget(t *testing.T) {
	tests := []struct {
		in   string
		want BudgetBucket
	}{
		{"base", BudgetBase},
		{"low", BudgetBase},
		{"spinto", BudgetSpinto},
		{"medium", BudgetSpinto},
		{"nolimit", BudgetNoLimit},
		{"high", BudgetNoLimit},
		{"", BudgetNoLimit},
		{"garbage", BudgetNoLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalBudget(tt.in), tt.in)
	}
}

func TestPreferencesCeiling(t *testing.T) {
	assert.InDelta(t, 23.0, Preferences{Budget: BudgetBase}.Ceiling(), 1e-9)
	assert.InDelta(t, 46.0, Preferences{Budget: BudgetSpinto}.Ceiling(), 1e-9)
	assert.Zero(t, Preferences{Budget: BudgetNoLimit}.Ceiling())
	assert.Zero(t, Preferences{}.Ceiling())

	// A numeric amount wins over the bucket.
	p := Preferences{Budget: BudgetBase, BudgetAmount: 30}
	assert.InDelta(t, 34.5, p.Ceiling(), 1e-9)
}

func TestBottlesNeeded(t *testing.T) {
	tests := []struct {
		name  string
		prefs Preferences
		want  int
	}{
		{"explicit count wins", Preferences{BottleCount: 3, Guests: 12}, 3},
		{"two guests", Preferences{Guests: 2}, 1},      // 4 glasses / 6 = 0.66 -> round up
		{"four guests", Preferences{Guests: 4}, 1},     // 8/6 = 1.33 -> 1
		{"five guests", Preferences{Guests: 5}, 2},     // 10/6 = 1.66 -> 2
		{"six guests", Preferences{Guests: 6}, 2},      // 12/6 = 2
		{"nine guests", Preferences{Guests: 9}, 3},     // 18/6 = 3
		{"no guests defaults", Preferences{Guests: 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.prefs.BottlesNeeded())
		})
	}
}

func TestSessionEnded(t *testing.T) {
	assert.False(t, Session{Status: SessionActive}.Ended())
	assert.True(t, Session{Status: SessionCompleted}.Ended())
	assert.True(t, Session{Status: SessionTimeout}.Ended())
}

func TestConversationContextRoundTrip(t *testing.T) {
	cc := ConversationContext{
		Phase: PhaseRecommending,
		Preferences: Preferences{
			Color:       ColorRed,
			Mode:        ModeJourney,
			Budget:      BudgetSpinto,
			Guests:      4,
			BottleCount: 2,
		},
		Dishes:       []Dish{{Name: "tagliata", MainIngredient: "manzo"}},
		MessageCount: 3,
	}

	data, err := json.Marshal(cc)
	require.NoError(t, err)

	var got ConversationContext
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, cc, got)
}
