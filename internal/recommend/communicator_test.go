package recommend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liber-ai/sommelier/internal/model"
)

func TestTemplateSingleMessage(t *testing.T) {
	ranked := []model.RankedWine{
		{Wine: model.Wine{Name: "Barolo Riserva", Price: 42}, Rank: 1, Reason: "Structure for the roast.", Best: true},
		{Wine: model.Wine{Name: "Nebbiolo d'Alba", Price: 18}, Rank: 2, Reason: "A lighter take."},
		{Wine: model.Wine{Name: "Soave Classico", Price: 22}, Rank: 3, Reason: "For the fish starters."},
	}

	msg := templateSingleMessage(ranked)
	assert.Contains(t, msg, "Barolo Riserva")
	assert.Contains(t, msg, "42.00 euro")
	assert.Contains(t, msg, "Structure for the roast.")
	assert.Contains(t, msg, "Nebbiolo d'Alba")
	assert.Contains(t, msg, "Soave Classico")
	assert.True(t, strings.Index(msg, "Barolo") < strings.Index(msg, "Nebbiolo"), "best wine leads")
}

func TestTemplateSingleMessage_OneWine(t *testing.T) {
	ranked := []model.RankedWine{
		{Wine: model.Wine{Name: "Barolo Riserva", Price: 42}, Rank: 1, Reason: "Only choice.", Best: true},
	}

	msg := templateSingleMessage(ranked)
	assert.Contains(t, msg, "Barolo Riserva")
	assert.NotContains(t, msg, "alternatives")
}

func TestTemplateSingleMessage_Empty(t *testing.T) {
	assert.Empty(t, templateSingleMessage(nil))
}

func TestTemplateJourneyMessage(t *testing.T) {
	journeys := []model.Journey{
		{Name: "Classico", Reason: "Tradition first.", Wines: []model.Wine{
			{Name: "Franciacorta Brut", Price: 35},
			{Name: "Barolo Riserva", Price: 42},
		}},
		{Wines: []model.Wine{
			{Name: "Soave Classico", Price: 22},
			{Name: "Nebbiolo d'Alba", Price: 18},
		}},
	}

	msg := templateJourneyMessage(journeys)
	assert.Contains(t, msg, "Classico:")
	assert.Contains(t, msg, "Journey 2:") // unnamed journey gets a number
	assert.Contains(t, msg, "35.00 euro")
	assert.Contains(t, msg, "then the Barolo Riserva")
	assert.Contains(t, msg, "Tradition first.")
}

func TestTemplateOpeningMessage(t *testing.T) {
	styles, err := LoadStyles("")
	assert.NoError(t, err)
	style := styles.Get("friendly")

	venue := &model.Venue{Name: "Osteria", WelcomeMessage: "Benvenuti all'Osteria!"}
	cc := model.ConversationContext{Dishes: []model.Dish{{Name: "tagliata di manzo"}}}

	msg := templateOpeningMessage(venue, style, cc)
	assert.Contains(t, msg, "Benvenuti all'Osteria!")
	assert.Contains(t, msg, "tagliata di manzo")
	assert.Contains(t, msg, "special requirements")

	// Without a venue welcome, the style intro opens.
	msg = templateOpeningMessage(&model.Venue{Name: "Osteria"}, style, cc)
	assert.Contains(t, msg, style.Intro)
}

func TestPairingHints(t *testing.T) {
	tests := []struct {
		name   string
		dishes []model.Dish
		want   []string
	}{
		{
			name:   "fish dish",
			dishes: []model.Dish{{Name: "Branzino al sale"}},
			want:   []string{"fish and seafood"},
		},
		{
			name:   "meat by ingredient",
			dishes: []model.Dish{{Name: "Tagliata", MainIngredient: "manzo"}},
			want:   []string{"red meat"},
		},
		{
			name: "mixed table",
			dishes: []model.Dish{
				{Name: "Risotto ai porcini"},
				{Name: "Tiramisù"},
			},
			want: []string{"mushroom", "dessert wines"},
		},
		{
			name:   "no keywords",
			dishes: []model.Dish{{Name: "Insalata mista"}},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pairingHints(tt.dishes)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}
