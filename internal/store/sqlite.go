package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/liber-ai/sommelier/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS venues (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	slug            TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	sommelier_style TEXT NOT NULL DEFAULT 'professional',
	welcome_message TEXT NOT NULL DEFAULT '',
	featured_wines  TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS wines (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	venue_id      INTEGER NOT NULL REFERENCES venues(id),
	name          TEXT NOT NULL,
	color         TEXT NOT NULL,
	price         REAL NOT NULL,
	cost          REAL NOT NULL DEFAULT 0,
	available     INTEGER NOT NULL DEFAULT 1,
	region        TEXT NOT NULL DEFAULT '',
	grape_variety TEXT NOT NULL DEFAULT '',
	vintage       TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	tasting_notes TEXT NOT NULL DEFAULT '',
	UNIQUE (venue_id, name)
);

CREATE TABLE IF NOT EXISTS sessions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	token        TEXT NOT NULL UNIQUE,
	venue_id     INTEGER NOT NULL REFERENCES venues(id),
	context      TEXT NOT NULL DEFAULT '{}',
	status       TEXT NOT NULL DEFAULT 'active',
	rating       INTEGER NOT NULL DEFAULT 0,
	feedback     TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	last_seen_at DATETIME NOT NULL DEFAULT (datetime('now')),
	ended_at     DATETIME
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER NOT NULL REFERENCES sessions(id),
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	wine_ids   TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS proposals (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    INTEGER NOT NULL REFERENCES sessions(id),
	message_id    INTEGER NOT NULL DEFAULT 0,
	wine_id       INTEGER NOT NULL REFERENCES wines(id),
	batch_id      TEXT NOT NULL,
	mode          TEXT NOT NULL,
	rank          INTEGER NOT NULL,
	journey_index INTEGER NOT NULL DEFAULT 0,
	price         REAL NOT NULL,
	margin        REAL NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	best          INTEGER NOT NULL DEFAULT 0,
	selected      INTEGER NOT NULL DEFAULT 0,
	selected_at   DATETIME,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_wines_venue_available ON wines(venue_id, available);
CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
CREATE INDEX IF NOT EXISTS idx_sessions_last_seen ON sessions(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_proposals_session ON proposals(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_proposals_session_wine ON proposals(session_id, wine_id, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetVenue(ctx context.Context, id int64) (*model.Venue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, sommelier_style, welcome_message, featured_wines FROM venues WHERE id = ?`,
		id,
	)
	return scanVenue(row)
}

func (s *SQLiteStore) GetVenueBySlug(ctx context.Context, slug string) (*model.Venue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, sommelier_style, welcome_message, featured_wines FROM venues WHERE slug = ?`,
		slug,
	)
	return scanVenue(row)
}

// CreateVenue inserts a venue. Used by the catalog import command.
func (s *SQLiteStore) CreateVenue(ctx context.Context, v model.Venue) (*model.Venue, error) {
	featuredJSON, err := json.Marshal(v.FeaturedWines)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal featured wines")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO venues (slug, name, sommelier_style, welcome_message, featured_wines) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (slug) DO UPDATE SET name = excluded.name, sommelier_style = excluded.sommelier_style,
		   welcome_message = excluded.welcome_message, featured_wines = excluded.featured_wines`,
		v.Slug, v.Name, v.SommelierStyle, v.WelcomeMessage, string(featuredJSON),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert venue %s", v.Slug)
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		v.ID = id
	}
	// Upserts report the existing row id via a lookup.
	if v.ID == 0 {
		existing, err := s.GetVenueBySlug(ctx, v.Slug)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			v.ID = existing.ID
		}
	}
	return &v, nil
}

// UpsertWine inserts or updates a wine keyed by (venue_id, name). Used by
// the catalog import command.
func (s *SQLiteStore) UpsertWine(ctx context.Context, w model.Wine) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wines (venue_id, name, color, price, cost, available, region, grape_variety, vintage, description, tasting_notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (venue_id, name) DO UPDATE SET
		   color = excluded.color, price = excluded.price, cost = excluded.cost, available = excluded.available,
		   region = excluded.region, grape_variety = excluded.grape_variety, vintage = excluded.vintage,
		   description = excluded.description, tasting_notes = excluded.tasting_notes`,
		w.VenueID, w.Name, string(w.Color), w.Price, w.Cost, w.Available,
		w.Region, w.GrapeVariety, w.Vintage, w.Description, w.TastingNotes,
	)
	return eris.Wrapf(err, "sqlite: upsert wine %s", w.Name)
}

func (s *SQLiteStore) ListAvailableWines(ctx context.Context, venueID int64) ([]model.Wine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, venue_id, name, color, price, cost, available, region, grape_variety, vintage, description, tasting_notes
		 FROM wines WHERE venue_id = ? AND available = 1
		 ORDER BY price ASC, id ASC`,
		venueID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list available wines")
	}
	defer rows.Close()

	var wines []model.Wine
	for rows.Next() {
		var w model.Wine
		if err := rows.Scan(&w.ID, &w.VenueID, &w.Name, &w.Color, &w.Price, &w.Cost, &w.Available,
			&w.Region, &w.GrapeVariety, &w.Vintage, &w.Description, &w.TastingNotes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan wine")
		}
		wines = append(wines, w)
	}
	return wines, eris.Wrap(rows.Err(), "sqlite: list available wines iterate")
}

func (s *SQLiteStore) GetWine(ctx context.Context, id int64) (*model.Wine, error) {
	var w model.Wine
	err := s.db.QueryRowContext(ctx,
		`SELECT id, venue_id, name, color, price, cost, available, region, grape_variety, vintage, description, tasting_notes
		 FROM wines WHERE id = ?`,
		id,
	).Scan(&w.ID, &w.VenueID, &w.Name, &w.Color, &w.Price, &w.Cost, &w.Available,
		&w.Region, &w.GrapeVariety, &w.Vintage, &w.Description, &w.TastingNotes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get wine %d", id)
	}
	return &w, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, venueID int64, cc model.ConversationContext) (*model.Session, error) {
	token := uuid.New().String()
	now := time.Now().UTC()

	ctxJSON, err := json.Marshal(cc)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal context")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, venue_id, context, status, created_at, last_seen_at) VALUES (?, ?, ?, ?, ?, ?)`,
		token, venueID, string(ctxJSON), string(model.SessionActive), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert session")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: session id")
	}

	return &model.Session{
		ID:         id,
		Token:      token,
		VenueID:    venueID,
		Context:    cc,
		Status:     model.SessionActive,
		CreatedAt:  now,
		LastSeenAt: now,
	}, nil
}

func (s *SQLiteStore) GetSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	var ctxJSON string
	var endedAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, token, venue_id, context, status, rating, feedback, created_at, last_seen_at, ended_at FROM sessions WHERE token = ?`,
		token,
	).Scan(&sess.ID, &sess.Token, &sess.VenueID, &ctxJSON, &sess.Status, &sess.Rating, &sess.Feedback, &sess.CreatedAt, &sess.LastSeenAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get session by token")
	}
	if err := json.Unmarshal([]byte(ctxJSON), &sess.Context); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal session context")
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	return &sess, nil
}

func (s *SQLiteStore) UpdateSessionContext(ctx context.Context, sessionID int64, cc model.ConversationContext) error {
	ctxJSON, err := json.Marshal(cc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal context")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET context = ?, last_seen_at = ? WHERE id = ?`,
		string(ctxJSON), time.Now().UTC(), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update session context %d", sessionID)
	}
	return checkRowsAffected(res, "session", sessionID)
}

func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen_at = ? WHERE id = ?`,
		time.Now().UTC(), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch session %d", sessionID)
	}
	return checkRowsAffected(res, "session", sessionID)
}

func (s *SQLiteStore) EndSession(ctx context.Context, sessionID int64, status model.SessionStatus) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, last_seen_at = ?, ended_at = ? WHERE id = ?`,
		string(status), now, now, sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: end session %d", sessionID)
	}
	return checkRowsAffected(res, "session", sessionID)
}

func (s *SQLiteStore) SaveFeedback(ctx context.Context, sessionID int64, rating int, feedback string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET rating = ?, feedback = ? WHERE id = ?`,
		rating, feedback, sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save feedback %d", sessionID)
	}
	return checkRowsAffected(res, "session", sessionID)
}

func (s *SQLiteStore) CleanupStaleSessions(ctx context.Context, staleAfter time.Duration) (int, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-staleAfter)
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ? WHERE status = ? AND last_seen_at < ?`,
		string(model.SessionTimeout), now, string(model.SessionActive), cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: cleanup stale sessions")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) AddMessage(ctx context.Context, sessionID int64, role model.MessageRole, content string, wineIDs []int64) (*model.Message, error) {
	now := time.Now().UTC()

	if wineIDs == nil {
		wineIDs = []int64{}
	}
	idsJSON, err := json.Marshal(wineIDs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal wine ids")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, wine_ids, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(role), content, string(idsJSON), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert message for session %d", sessionID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: message id")
	}

	return &model.Message{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		WineIDs:   wineIDs,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID int64, limit int) ([]model.Message, error) {
	query := `SELECT id, session_id, role, content, wine_ids, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`
	args := []any{sessionID}
	if limit > 0 {
		// Most recent N, returned in chronological order.
		query = `SELECT id, session_id, role, content, wine_ids, created_at FROM (
			SELECT id, session_id, role, content, wine_ids, created_at FROM messages
			WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at ASC, id ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list messages")
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var idsJSON string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &idsJSON, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		if err := json.Unmarshal([]byte(idsJSON), &m.WineIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal wine ids")
		}
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "sqlite: list messages iterate")
}

func (s *SQLiteStore) CreateProposals(ctx context.Context, proposals []model.Proposal) error {
	if len(proposals) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, p := range proposals {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO proposals (session_id, message_id, wine_id, batch_id, mode, rank, journey_index, price, margin, reason, best, selected, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.SessionID, p.MessageID, p.WineID, p.BatchID, string(p.Mode), p.Rank, p.JourneyIndex, p.Price, p.Margin, p.Reason, p.Best, p.Selected, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert proposal for wine %d", p.WineID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit proposals")
}

func (s *SQLiteStore) LatestProposalForWine(ctx context.Context, sessionID, wineID int64) (*model.Proposal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, message_id, wine_id, batch_id, mode, rank, journey_index, price, margin, reason, best, selected, selected_at, created_at
		 FROM proposals WHERE session_id = ? AND wine_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		sessionID, wineID,
	)
	p, err := scanProposal(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest proposal for wine %d", wineID)
	}
	return p, nil
}

func (s *SQLiteStore) MarkProposalSelected(ctx context.Context, proposalID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET selected = 1, selected_at = COALESCE(selected_at, ?) WHERE id = ?`,
		time.Now().UTC(), proposalID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark proposal selected %d", proposalID)
	}
	return checkRowsAffected(res, "proposal", proposalID)
}

func (s *SQLiteStore) CreateSelectedProposal(ctx context.Context, p model.Proposal) (*model.Proposal, error) {
	now := time.Now().UTC()
	p.Selected = true
	p.SelectedAt = &now
	p.CreatedAt = now
	if p.BatchID == "" {
		p.BatchID = uuid.New().String()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO proposals (session_id, message_id, wine_id, batch_id, mode, rank, journey_index, price, margin, reason, best, selected, selected_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		p.SessionID, p.MessageID, p.WineID, p.BatchID, string(p.Mode), p.Rank, p.JourneyIndex, p.Price, p.Margin, p.Reason, p.Best, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert selected proposal for wine %d", p.WineID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: proposal id")
	}
	p.ID = id
	return &p, nil
}

func (s *SQLiteStore) ListProposalsBySession(ctx context.Context, sessionID int64) ([]model.Proposal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, message_id, wine_id, batch_id, mode, rank, journey_index, price, margin, reason, best, selected, selected_at, created_at
		 FROM proposals WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list proposals")
	}
	defer rows.Close()

	var proposals []model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan proposal")
		}
		proposals = append(proposals, *p)
	}
	return proposals, eris.Wrap(rows.Err(), "sqlite: list proposals iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProposal(row scannable) (*model.Proposal, error) {
	var p model.Proposal
	var selectedAt sql.NullTime

	err := row.Scan(&p.ID, &p.SessionID, &p.MessageID, &p.WineID, &p.BatchID, &p.Mode, &p.Rank, &p.JourneyIndex,
		&p.Price, &p.Margin, &p.Reason, &p.Best, &p.Selected, &selectedAt, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if selectedAt.Valid {
		p.SelectedAt = &selectedAt.Time
	}
	return &p, nil
}

func scanVenue(row scannable) (*model.Venue, error) {
	var v model.Venue
	var featuredJSON string

	err := row.Scan(&v.ID, &v.Slug, &v.Name, &v.SommelierStyle, &v.WelcomeMessage, &featuredJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan venue")
	}
	if err := json.Unmarshal([]byte(featuredJSON), &v.FeaturedWines); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal featured wines")
	}
	return &v, nil
}
