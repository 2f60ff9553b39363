package recommend

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liber-ai/sommelier/internal/config"
	"github.com/liber-ai/sommelier/internal/model"
	"github.com/liber-ai/sommelier/internal/store"
)

type engineFixture struct {
	engine *Engine
	client *mockClient
	store  store.Store
	venue  *model.Venue
	wines  []model.Wine
}

func newEngineFixture(t *testing.T, replies ...scriptedReply) *engineFixture {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	venue, err := st.CreateVenue(ctx, model.Venue{Slug: "osteria", Name: "Osteria del Porto", SommelierStyle: "friendly"})
	require.NoError(t, err)
	for _, w := range catalogFixture() {
		w.VenueID = venue.ID
		require.NoError(t, st.UpsertWine(ctx, w))
	}
	wines, err := st.ListAvailableWines(ctx, venue.ID)
	require.NoError(t, err)

	client := &mockClient{replies: replies}
	styles, err := LoadStyles("")
	require.NoError(t, err)

	cfg := config.RecommendConfig{
		SelectionTimeoutSecs:     5,
		CommunicationTimeoutSecs: 5,
		SelectionTemperature:     0.3,
		SelectionMaxTokens:       2048,
		CommunicationMaxTokens:   1024,
	}
	engine := NewEngine(client, st, styles, cfg, "claude-haiku-4-5-20251001", "claude-sonnet-4-5-20250929")

	return &engineFixture{engine: engine, client: client, store: st, venue: venue, wines: wines}
}

func (f *engineFixture) newSession(t *testing.T, cc model.ConversationContext) *model.Session {
	t.Helper()
	session, err := f.store.CreateSession(context.Background(), f.venue.ID, cc)
	require.NoError(t, err)
	return session
}

// fullRankingJSON builds a well-formed selection over the fixture catalog.
func (f *engineFixture) fullRankingJSON() string {
	out := `{"wines": [`
	for i, w := range f.wines {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"id": %d, "name": %q, "rank": %d, "reason": "fits the table", "best": %t}`,
			w.ID, w.Name, i+1, i == 0)
	}
	return out + `]}`
}

func singlePrefs() model.ConversationContext {
	return model.ConversationContext{
		Phase: model.PhaseRecommending,
		Preferences: model.Preferences{
			Color: model.ColorAny,
			Mode:  model.ModeSingle,
		},
	}
}

func TestEngine_OpeningTurn(t *testing.T) {
	f := newEngineFixture(t, scriptedReply{text: "Welcome in! Any preferences tonight?"})
	session := f.newSession(t, model.ConversationContext{Phase: model.PhaseOpening})

	rec, err := f.engine.Respond(context.Background(), session, f.venue, "hi")
	require.NoError(t, err)

	assert.True(t, rec.Opening)
	assert.Equal(t, "Welcome in! Any preferences tonight?", rec.Message)
	assert.Empty(t, rec.Wines)
	assert.Empty(t, rec.Journeys)
	assert.Equal(t, model.PhaseRecommending, session.Context.Phase)
	assert.Len(t, f.client.requests, 1)
}

func TestEngine_OpeningFallsBackToTemplate(t *testing.T) {
	f := newEngineFixture(t, scriptedReply{err: eris.New("timeout")})
	session := f.newSession(t, model.ConversationContext{
		Phase:  model.PhaseOpening,
		Dishes: []model.Dish{{Name: "branzino al sale"}},
	})

	rec, err := f.engine.Respond(context.Background(), session, f.venue, "hello")
	require.NoError(t, err)

	assert.True(t, rec.Opening)
	assert.Contains(t, rec.Message, "branzino al sale")
	assert.Contains(t, rec.Message, "special requirements")
	assert.Equal(t, model.PhaseRecommending, session.Context.Phase)
}

func TestEngine_OpeningSkippedWithFullPreferences(t *testing.T) {
	f := newEngineFixture(t)
	f.client.replies = []scriptedReply{
		{text: f.fullRankingJSON()},
		{text: "The Nebbiolo d'Alba at 18.00 euro is tonight's pick."},
	}

	cc := singlePrefs()
	cc.Phase = model.PhaseOpening
	session := f.newSession(t, cc)

	rec, err := f.engine.Respond(context.Background(), session, f.venue, "red or white, single bottle, no budget limit")
	require.NoError(t, err)

	assert.False(t, rec.Opening)
	assert.NotEmpty(t, rec.Wines)
	assert.Equal(t, model.PhaseRecommending, session.Context.Phase)
}

func TestEngine_SingleModeHappyPath(t *testing.T) {
	f := newEngineFixture(t)
	f.client.replies = []scriptedReply{
		{text: f.fullRankingJSON()},
		{text: "For your table I would open the Nebbiolo d'Alba, 18.00 euro."},
	}
	session := f.newSession(t, singlePrefs())

	rec, err := f.engine.Respond(context.Background(), session, f.venue, "what do you suggest?")
	require.NoError(t, err)

	assert.Equal(t, model.ModeSingle, rec.Mode)
	assert.Equal(t, "For your table I would open the Nebbiolo d'Alba, 18.00 euro.", rec.Message)
	assert.NotEmpty(t, rec.BatchID)
	assert.Len(t, rec.Wines, 3)
	assert.Len(t, rec.AllRankings, len(f.wines))

	bestCount := 0
	seen := map[int64]bool{}
	for _, r := range rec.AllRankings {
		if r.Best {
			bestCount++
			assert.Equal(t, 1, r.Rank)
		}
		assert.False(t, seen[r.Wine.ID])
		seen[r.Wine.ID] = true
	}
	assert.Equal(t, 1, bestCount)
	assert.Len(t, f.client.requests, 2)
}

func TestEngine_EmptyFilterShortCircuits(t *testing.T) {
	f := newEngineFixture(t)
	cc := singlePrefs()
	cc.Preferences.Color = model.ColorRose // nothing in the fixture is rosé
	session := f.newSession(t, cc)

	rec, err := f.engine.Respond(context.Background(), session, f.venue, "rosé please")
	require.NoError(t, err)

	assert.Equal(t, noWinesMessage, rec.Message)
	assert.Empty(t, rec.Wines)
	assert.Empty(t, f.client.requests, "no model call for an empty catalog")
}

func TestEngine_SelectionFailureRunsLegacyPath(t *testing.T) {
	f := newEngineFixture(t)
	f.client.replies = []scriptedReply{
		{err: eris.New("529 overloaded")},
		{text: "Tonight the Barolo Riserva at 42.00 euro would be my choice."},
	}
	session := f.newSession(t, singlePrefs())

	rec, err := f.engine.Respond(context.Background(), session, f.venue, "something serious")
	require.NoError(t, err)

	assert.Contains(t, rec.Message, "Barolo Riserva")
	require.Len(t, rec.AllRankings, 1)
	assert.Equal(t, "Barolo Riserva", rec.AllRankings[0].Wine.Name)
	assert.True(t, rec.AllRankings[0].Best)
	assert.Equal(t, 1, rec.AllRankings[0].Rank)
}

func TestEngine_BothPathsDownSurfacesServiceUnavailable(t *testing.T) {
	f := newEngineFixture(t)
	f.client.replies = []scriptedReply{
		{err: eris.New("529 overloaded")},
		{err: eris.New("529 overloaded")},
	}
	session := f.newSession(t, singlePrefs())

	_, err := f.engine.Respond(context.Background(), session, f.venue, "anything")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestEngine_CommunicationFailureUsesTemplate(t *testing.T) {
	f := newEngineFixture(t)
	f.client.replies = []scriptedReply{
		{text: f.fullRankingJSON()},
		{err: eris.New("timeout")},
	}
	session := f.newSession(t, singlePrefs())

	rec, err := f.engine.Respond(context.Background(), session, f.venue, "go on")
	require.NoError(t, err)

	// The cheapest fixture wine leads the scripted ranking.
	assert.Contains(t, rec.Message, "Nebbiolo d'Alba")
	assert.Contains(t, rec.Message, "18.00 euro")
	assert.Len(t, rec.Wines, 3)
}

func TestEngine_JourneyRejectedBatchFallsBack(t *testing.T) {
	f := newEngineFixture(t)
	// One journey only: the batch is rejected, the legacy path builds
	// deterministic journeys instead.
	badBatch := fmt.Sprintf(`{"journeys": [{"name": "solo", "reason": "r", "wines": [{"id": %d}, {"id": %d}]}]}`,
		f.wines[0].ID, f.wines[1].ID)
	f.client.replies = []scriptedReply{
		{text: badBatch},
		{text: "Let me walk you through two journeys."},
	}

	cc := model.ConversationContext{
		Phase: model.PhaseRecommending,
		Preferences: model.Preferences{
			Color:       model.ColorAny,
			Mode:        model.ModeJourney,
			BottleCount: 2,
		},
	}
	session := f.newSession(t, cc)

	rec, err := f.engine.Respond(context.Background(), session, f.venue, "a journey for four")
	require.NoError(t, err)

	assert.Equal(t, model.ModeJourney, rec.Mode)
	require.Len(t, rec.Journeys, 2)
	for _, j := range rec.Journeys {
		assert.Len(t, j.Wines, 2)
	}
	assert.Len(t, rec.WineIDs, 4)
	assert.Empty(t, rec.Wines)
}

func TestEngine_JourneyHappyPath(t *testing.T) {
	f := newEngineFixture(t)
	goodBatch := fmt.Sprintf(`{"journeys": [
		{"name": "Classico", "reason": "tradition", "wines": [{"id": %d}, {"id": %d}]},
		{"name": "Scoperta", "reason": "discovery", "wines": [{"id": %d}, {"id": %d}]}
	]}`, f.wines[0].ID, f.wines[1].ID, f.wines[2].ID, f.wines[3].ID)
	f.client.replies = []scriptedReply{
		{text: goodBatch},
		{text: "Two journeys for your evening."},
	}

	cc := model.ConversationContext{
		Phase: model.PhaseRecommending,
		Preferences: model.Preferences{
			Color:       model.ColorAny,
			Mode:        model.ModeJourney,
			BottleCount: 2,
		},
	}
	session := f.newSession(t, cc)

	rec, err := f.engine.Respond(context.Background(), session, f.venue, "surprise us")
	require.NoError(t, err)

	require.Len(t, rec.Journeys, 2)
	assert.Equal(t, "Classico", rec.Journeys[0].Name)
	assert.Equal(t, "Two journeys for your evening.", rec.Message)
	assert.Len(t, rec.WineIDs, 4)
}

func TestEngine_PhaseNeverGoesBackward(t *testing.T) {
	f := newEngineFixture(t)
	f.client.replies = []scriptedReply{
		{text: f.fullRankingJSON()},
		{text: "A fine choice awaits."},
	}
	session := f.newSession(t, singlePrefs())

	_, err := f.engine.Respond(context.Background(), session, f.venue, "wine me")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseRecommending, session.Context.Phase)
}
