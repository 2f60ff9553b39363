// Package conversation manages session and transcript state on top of the
// store: starting sessions, recording turns, and closing them out.
package conversation

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/liber-ai/sommelier/internal/model"
	"github.com/liber-ai/sommelier/internal/store"
)

var (
	ErrSessionNotFound = eris.New("conversation: session not found")
	ErrSessionEnded    = eris.New("conversation: session has ended")
	ErrVenueNotFound   = eris.New("conversation: venue not found")
	ErrInvalidRating   = eris.New("conversation: rating must be between 1 and 5")
)

// Manager owns session lifecycle and turn persistence. It is safe for
// concurrent use; all state lives in the store.
type Manager struct {
	store store.Store
}

func NewManager(st store.Store) *Manager {
	return &Manager{store: st}
}

// Start opens a session for the venue identified by slug. The context
// starts in the opening phase unless the caller supplies one already
// carrying preferences.
func (m *Manager) Start(ctx context.Context, venueSlug string, cc model.ConversationContext) (*model.Session, *model.Venue, error) {
	venue, err := m.store.GetVenueBySlug(ctx, venueSlug)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "conversation: look up venue %s", venueSlug)
	}
	if venue == nil {
		return nil, nil, ErrVenueNotFound
	}

	if cc.Phase == "" {
		cc.Phase = model.PhaseOpening
	}

	session, err := m.store.CreateSession(ctx, venue.ID, cc)
	if err != nil {
		return nil, nil, eris.Wrap(err, "conversation: create session")
	}

	zap.L().Info("session started",
		zap.String("venue", venueSlug),
		zap.Int64("session_id", session.ID))
	return session, venue, nil
}

// Resume loads an active session by token. Ended sessions are rejected so
// a stale client cannot keep appending turns.
func (m *Manager) Resume(ctx context.Context, token string) (*model.Session, error) {
	session, err := m.store.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, eris.Wrap(err, "conversation: look up session")
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Ended() {
		return nil, ErrSessionEnded
	}
	return session, nil
}

// RecordUserTurn appends the guest's message, bumps the turn counter on
// the in-memory context, and refreshes the session's activity stamp. The
// caller persists the context once the turn has been fully handled.
func (m *Manager) RecordUserTurn(ctx context.Context, session *model.Session, content string) (*model.Message, error) {
	msg, err := m.store.AddMessage(ctx, session.ID, model.RoleUser, content, nil)
	if err != nil {
		return nil, eris.Wrap(err, "conversation: record user turn")
	}
	session.Context.MessageCount++
	if err := m.store.TouchSession(ctx, session.ID); err != nil {
		zap.L().Warn("touch session failed", zap.Int64("session_id", session.ID), zap.Error(err))
	}
	return msg, nil
}

// RecordAssistantTurn appends the engine's reply along with the wine ids
// it surfaced.
func (m *Manager) RecordAssistantTurn(ctx context.Context, session *model.Session, content string, wineIDs []int64) (*model.Message, error) {
	msg, err := m.store.AddMessage(ctx, session.ID, model.RoleAssistant, content, wineIDs)
	if err != nil {
		return nil, eris.Wrap(err, "conversation: record assistant turn")
	}
	session.Context.MessageCount++
	return msg, nil
}

// SaveContext persists the session's conversation context, including any
// phase transition made during the turn.
func (m *Manager) SaveContext(ctx context.Context, session *model.Session) error {
	if err := m.store.UpdateSessionContext(ctx, session.ID, session.Context); err != nil {
		return eris.Wrap(err, "conversation: save context")
	}
	return nil
}

// History returns the most recent turns in chronological order. limit <= 0
// returns the full transcript.
func (m *Manager) History(ctx context.Context, sessionID int64, limit int) ([]model.Message, error) {
	msgs, err := m.store.ListMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "conversation: load history")
	}
	return msgs, nil
}

// End closes the session with the given status. Ending an already ended
// session is a no-op error from the store's perspective; callers treat it
// as success for idempotency.
func (m *Manager) End(ctx context.Context, token string, status model.SessionStatus) error {
	session, err := m.store.GetSessionByToken(ctx, token)
	if err != nil {
		return eris.Wrap(err, "conversation: look up session")
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Ended() {
		return nil
	}
	if err := m.store.EndSession(ctx, session.ID, status); err != nil {
		return eris.Wrap(err, "conversation: end session")
	}
	return nil
}

// SaveFeedback records the guest's rating and optional free-text feedback.
func (m *Manager) SaveFeedback(ctx context.Context, token string, rating int, feedback string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	session, err := m.store.GetSessionByToken(ctx, token)
	if err != nil {
		return eris.Wrap(err, "conversation: look up session")
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if err := m.store.SaveFeedback(ctx, session.ID, rating, feedback); err != nil {
		return eris.Wrap(err, "conversation: save feedback")
	}
	return nil
}
