package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liber-ai/sommelier/internal/model"
)

func testWines() []model.Wine {
	return []model.Wine{
		{ID: 1, Name: "Nebbiolo d'Alba", Color: model.ColorRed, Price: 18, Available: true},
		{ID: 2, Name: "Barolo Riserva", Color: model.ColorRed, Price: 25, Available: true},
		{ID: 3, Name: "Soave Classico", Color: model.ColorWhite, Price: 30, Available: true},
		{ID: 4, Name: "Franciacorta Brut", Color: model.ColorSparkling, Price: 45, Available: true},
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name    string
		prefs   model.Preferences
		wantIDs []int64
	}{
		{
			name:    "any color no budget keeps everything",
			prefs:   model.Preferences{Color: model.ColorAny},
			wantIDs: []int64{1, 2, 3, 4},
		},
		{
			name:    "empty color treated as any",
			prefs:   model.Preferences{},
			wantIDs: []int64{1, 2, 3, 4},
		},
		{
			name:    "red only",
			prefs:   model.Preferences{Color: model.ColorRed},
			wantIDs: []int64{1, 2},
		},
		{
			name:    "red with 20 euro budget admits slight overshoot only",
			prefs:   model.Preferences{Color: model.ColorRed, BudgetAmount: 20},
			wantIDs: []int64{1}, // ceiling 23: the 25-euro Barolo is out
		},
		{
			name:    "base bucket ceiling",
			prefs:   model.Preferences{Color: model.ColorAny, Budget: model.BudgetBase},
			wantIDs: []int64{1}, // 20 * 1.15 = 23
		},
		{
			name:    "spinto bucket ceiling",
			prefs:   model.Preferences{Color: model.ColorAny, Budget: model.BudgetSpinto},
			wantIDs: []int64{1, 2, 3, 4}, // 40 * 1.15 = 46
		},
		{
			name:    "nolimit bucket applies no ceiling",
			prefs:   model.Preferences{Color: model.ColorAny, Budget: model.BudgetNoLimit},
			wantIDs: []int64{1, 2, 3, 4},
		},
		{
			name:    "no match yields empty set",
			prefs:   model.Preferences{Color: model.ColorRose},
			wantIDs: []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(testWines(), tt.prefs)
			ids := make([]int64, 0, len(got))
			for _, w := range got {
				ids = append(ids, w.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestFilter_SkipsUnavailable(t *testing.T) {
	wines := testWines()
	wines[0].Available = false

	got := Filter(wines, model.Preferences{Color: model.ColorRed})
	assert.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}
