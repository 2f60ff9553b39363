package conversation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liber-ai/sommelier/internal/model"
	"github.com/liber-ai/sommelier/internal/store"
)

func newTestManager(t *testing.T) (*Manager, store.Store) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
	return NewManager(st), st
}

func seedVenue(t *testing.T, st store.Store) *model.Venue {
	t.Helper()
	v, err := st.CreateVenue(context.Background(), model.Venue{
		Slug:           "trattoria-roma",
		Name:           "Trattoria Roma",
		SommelierStyle: "friendly",
	})
	require.NoError(t, err)
	return v
}

func TestManager_StartAndResume(t *testing.T) {
	m, st := newTestManager(t)
	seedVenue(t, st)

	session, venue, err := m.Start(context.Background(), "trattoria-roma", model.ConversationContext{})
	require.NoError(t, err)
	assert.Equal(t, "Trattoria Roma", venue.Name)
	assert.Equal(t, model.PhaseOpening, session.Context.Phase)
	assert.NotEmpty(t, session.Token)

	resumed, err := m.Resume(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, resumed.ID)
}

func TestManager_StartUnknownVenue(t *testing.T) {
	m, _ := newTestManager(t)

	_, _, err := m.Start(context.Background(), "nowhere", model.ConversationContext{})
	assert.ErrorIs(t, err, ErrVenueNotFound)
}

func TestManager_StartKeepsSuppliedPhase(t *testing.T) {
	m, st := newTestManager(t)
	seedVenue(t, st)

	cc := model.ConversationContext{Phase: model.PhaseRecommending}
	session, _, err := m.Start(context.Background(), "trattoria-roma", cc)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseRecommending, session.Context.Phase)
}

func TestManager_ResumeEndedSession(t *testing.T) {
	m, st := newTestManager(t)
	seedVenue(t, st)

	session, _, err := m.Start(context.Background(), "trattoria-roma", model.ConversationContext{})
	require.NoError(t, err)
	require.NoError(t, st.EndSession(context.Background(), session.ID, model.SessionCompleted))

	_, err = m.Resume(context.Background(), session.Token)
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestManager_Turns(t *testing.T) {
	m, st := newTestManager(t)
	seedVenue(t, st)

	ctx := context.Background()
	session, _, err := m.Start(ctx, "trattoria-roma", model.ConversationContext{})
	require.NoError(t, err)

	_, err = m.RecordUserTurn(ctx, session, "something red, please")
	require.NoError(t, err)
	_, err = m.RecordAssistantTurn(ctx, session, "I suggest the Barolo.", []int64{7})
	require.NoError(t, err)
	assert.Equal(t, 2, session.Context.MessageCount)

	session.Context.Phase = model.PhaseRecommending
	require.NoError(t, m.SaveContext(ctx, session))

	reloaded, err := m.Resume(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseRecommending, reloaded.Context.Phase)
	assert.Equal(t, 2, reloaded.Context.MessageCount)

	history, err := m.History(ctx, session.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
	assert.Equal(t, []int64{7}, history[1].WineIDs)
}

func TestManager_EndIsIdempotent(t *testing.T) {
	m, st := newTestManager(t)
	seedVenue(t, st)

	ctx := context.Background()
	session, _, err := m.Start(ctx, "trattoria-roma", model.ConversationContext{})
	require.NoError(t, err)

	require.NoError(t, m.End(ctx, session.Token, model.SessionCompleted))
	require.NoError(t, m.End(ctx, session.Token, model.SessionAbandoned))

	got, err := st.GetSessionByToken(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, got.Status)
}

func TestManager_SaveFeedback(t *testing.T) {
	m, st := newTestManager(t)
	seedVenue(t, st)

	ctx := context.Background()
	session, _, err := m.Start(ctx, "trattoria-roma", model.ConversationContext{})
	require.NoError(t, err)

	assert.ErrorIs(t, m.SaveFeedback(ctx, session.Token, 0, ""), ErrInvalidRating)
	assert.ErrorIs(t, m.SaveFeedback(ctx, session.Token, 6, ""), ErrInvalidRating)
	require.NoError(t, m.SaveFeedback(ctx, session.Token, 5, "great picks"))

	got, err := st.GetSessionByToken(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Rating)
	assert.Equal(t, "great picks", got.Feedback)
}
