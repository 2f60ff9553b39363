package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/liber-ai/sommelier/internal/db"
	"github.com/liber-ai/sommelier/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot per-message path.
var preparedStatements = map[string]string{
	"get_session_by_token": `SELECT id, token, venue_id, context, status, rating, feedback, created_at, last_seen_at, ended_at FROM sessions WHERE token = $1`,
	"update_session_ctx":   `UPDATE sessions SET context = $1, last_seen_at = $2 WHERE id = $3`,
	"touch_session":        `UPDATE sessions SET last_seen_at = $1 WHERE id = $2`,
	"insert_message":       `INSERT INTO messages (session_id, role, content, wine_ids, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
	"list_available_wines": `SELECT id, venue_id, name, color, price, cost, available, region, grape_variety, vintage, description, tasting_notes FROM wines WHERE venue_id = $1 AND available ORDER BY price ASC, id ASC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for use by subsystems that
// need direct query access (e.g., bulk catalog import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS venues (
	id              BIGSERIAL PRIMARY KEY,
	slug            TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	sommelier_style TEXT NOT NULL DEFAULT 'professional',
	welcome_message TEXT NOT NULL DEFAULT '',
	featured_wines  JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS wines (
	id            BIGSERIAL PRIMARY KEY,
	venue_id      BIGINT NOT NULL REFERENCES venues(id),
	name          TEXT NOT NULL,
	color         TEXT NOT NULL,
	price         DOUBLE PRECISION NOT NULL,
	cost          DOUBLE PRECISION NOT NULL DEFAULT 0,
	available     BOOLEAN NOT NULL DEFAULT true,
	region        TEXT NOT NULL DEFAULT '',
	grape_variety TEXT NOT NULL DEFAULT '',
	vintage       TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	tasting_notes TEXT NOT NULL DEFAULT '',
	UNIQUE (venue_id, name)
);

CREATE TABLE IF NOT EXISTS sessions (
	id           BIGSERIAL PRIMARY KEY,
	token        TEXT NOT NULL UNIQUE,
	venue_id     BIGINT NOT NULL REFERENCES venues(id),
	context      JSONB NOT NULL DEFAULT '{}',
	status       TEXT NOT NULL DEFAULT 'active',
	rating       INTEGER NOT NULL DEFAULT 0,
	feedback     TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	ended_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS messages (
	id         BIGSERIAL PRIMARY KEY,
	session_id BIGINT NOT NULL REFERENCES sessions(id),
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	wine_ids   JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS proposals (
	id            BIGSERIAL PRIMARY KEY,
	session_id    BIGINT NOT NULL REFERENCES sessions(id),
	message_id    BIGINT NOT NULL DEFAULT 0,
	wine_id       BIGINT NOT NULL REFERENCES wines(id),
	batch_id      TEXT NOT NULL,
	mode          TEXT NOT NULL,
	rank          INTEGER NOT NULL,
	journey_index INTEGER NOT NULL DEFAULT 0,
	price         DOUBLE PRECISION NOT NULL,
	margin        DOUBLE PRECISION NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	best          BOOLEAN NOT NULL DEFAULT false,
	selected      BOOLEAN NOT NULL DEFAULT false,
	selected_at   TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_wines_venue_available ON wines(venue_id, available);
CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
CREATE INDEX IF NOT EXISTS idx_sessions_last_seen ON sessions(last_seen_at);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_proposals_session ON proposals(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_proposals_session_wine ON proposals(session_id, wine_id, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetVenue(ctx context.Context, id int64) (*model.Venue, error) {
	var v model.Venue
	var featuredJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, name, sommelier_style, welcome_message, featured_wines FROM venues WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.Slug, &v.Name, &v.SommelierStyle, &v.WelcomeMessage, &featuredJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get venue %d", id)
	}
	if err := json.Unmarshal(featuredJSON, &v.FeaturedWines); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal featured wines")
	}
	return &v, nil
}

func (s *PostgresStore) GetVenueBySlug(ctx context.Context, slug string) (*model.Venue, error) {
	var v model.Venue
	var featuredJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, slug, name, sommelier_style, welcome_message, featured_wines FROM venues WHERE slug = $1`,
		slug,
	).Scan(&v.ID, &v.Slug, &v.Name, &v.SommelierStyle, &v.WelcomeMessage, &featuredJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get venue by slug %s", slug)
	}
	if err := json.Unmarshal(featuredJSON, &v.FeaturedWines); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal featured wines")
	}
	return &v, nil
}

// CreateVenue inserts or updates a venue keyed by slug. Used by the
// catalog import command.
func (s *PostgresStore) CreateVenue(ctx context.Context, v model.Venue) (*model.Venue, error) {
	featuredJSON, err := json.Marshal(v.FeaturedWines)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal featured wines")
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO venues (slug, name, sommelier_style, welcome_message, featured_wines) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, sommelier_style = EXCLUDED.sommelier_style,
		   welcome_message = EXCLUDED.welcome_message, featured_wines = EXCLUDED.featured_wines
		 RETURNING id`,
		v.Slug, v.Name, v.SommelierStyle, v.WelcomeMessage, featuredJSON,
	).Scan(&v.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert venue %s", v.Slug)
	}
	return &v, nil
}

// UpsertWine inserts or updates a wine keyed by (venue_id, name). Bulk
// imports should prefer db.BulkUpsert over this row-at-a-time path.
func (s *PostgresStore) UpsertWine(ctx context.Context, w model.Wine) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO wines (venue_id, name, color, price, cost, available, region, grape_variety, vintage, description, tasting_notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (venue_id, name) DO UPDATE SET
		   color = EXCLUDED.color, price = EXCLUDED.price, cost = EXCLUDED.cost, available = EXCLUDED.available,
		   region = EXCLUDED.region, grape_variety = EXCLUDED.grape_variety, vintage = EXCLUDED.vintage,
		   description = EXCLUDED.description, tasting_notes = EXCLUDED.tasting_notes`,
		w.VenueID, w.Name, string(w.Color), w.Price, w.Cost, w.Available,
		w.Region, w.GrapeVariety, w.Vintage, w.Description, w.TastingNotes,
	)
	return eris.Wrapf(err, "postgres: upsert wine %s", w.Name)
}

func (s *PostgresStore) ListAvailableWines(ctx context.Context, venueID int64) ([]model.Wine, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, venue_id, name, color, price, cost, available, region, grape_variety, vintage, description, tasting_notes
		 FROM wines WHERE venue_id = $1 AND available
		 ORDER BY price ASC, id ASC`,
		venueID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list available wines")
	}
	defer rows.Close()

	var wines []model.Wine
	for rows.Next() {
		var w model.Wine
		if err := rows.Scan(&w.ID, &w.VenueID, &w.Name, &w.Color, &w.Price, &w.Cost, &w.Available,
			&w.Region, &w.GrapeVariety, &w.Vintage, &w.Description, &w.TastingNotes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan wine")
		}
		wines = append(wines, w)
	}
	return wines, eris.Wrap(rows.Err(), "postgres: list available wines iterate")
}

func (s *PostgresStore) GetWine(ctx context.Context, id int64) (*model.Wine, error) {
	var w model.Wine
	err := s.pool.QueryRow(ctx,
		`SELECT id, venue_id, name, color, price, cost, available, region, grape_variety, vintage, description, tasting_notes
		 FROM wines WHERE id = $1`,
		id,
	).Scan(&w.ID, &w.VenueID, &w.Name, &w.Color, &w.Price, &w.Cost, &w.Available,
		&w.Region, &w.GrapeVariety, &w.Vintage, &w.Description, &w.TastingNotes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get wine %d", id)
	}
	return &w, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, venueID int64, cc model.ConversationContext) (*model.Session, error) {
	token := uuid.New().String()
	now := time.Now().UTC()

	ctxJSON, err := json.Marshal(cc)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal context")
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO sessions (token, venue_id, context, status, created_at, last_seen_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		token, venueID, ctxJSON, string(model.SessionActive), now, now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert session")
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

func (s *PostgresStore) GetSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	var ctxJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, token, venue_id, context, status, rating, feedback, created_at, last_seen_at, ended_at FROM sessions WHERE token = $1`,
		token,
	).Scan(&sess.ID, &sess.Token, &sess.VenueID, &ctxJSON, &sess.Status, &sess.Rating, &sess.Feedback, &sess.CreatedAt, &sess.LastSeenAt, &sess.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get session by token")
	}
	if err := json.Unmarshal(ctxJSON, &sess.Context); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal session context")
	}
	return &sess, nil
}

func (s *PostgresStore) UpdateSessionContext(ctx context.Context, sessionID int64, cc model.ConversationContext) error {
	ctxJSON, err := json.Marshal(cc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal context")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET context = $1, last_seen_at = $2 WHERE id = $3`,
		ctxJSON, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update session context %d", sessionID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("session not found: %d", sessionID)
	}
	return nil
}

func (s *PostgresStore) TouchSession(ctx context.Context, sessionID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET last_seen_at = $1 WHERE id = $2`,
		time.Now().UTC(), sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch session %d", sessionID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("session not found: %d", sessionID)
	}
	return nil
}

func (s *PostgresStore) EndSession(ctx context.Context, sessionID int64, status model.SessionStatus) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, last_seen_at = $2, ended_at = $2 WHERE id = $3`,
		string(status), now, sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: end session %d", sessionID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("session not found: %d", sessionID)
	}
	return nil
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, sessionID int64, rating int, feedback string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET rating = $1, feedback = $2 WHERE id = $3`,
		rating, feedback, sessionID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save feedback %d", sessionID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("session not found: %d", sessionID)
	}
	return nil
}

func (s *PostgresStore) CleanupStaleSessions(ctx context.Context, staleAfter time.Duration) (int, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-staleAfter)
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, ended_at = $2 WHERE status = $3 AND last_seen_at < $4`,
		string(model.SessionTimeout), now, string(model.SessionActive), cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: cleanup stale sessions")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) AddMessage(ctx context.Context, sessionID int64, role model.MessageRole, content string, wineIDs []int64) (*model.Message, error) {
	now := time.Now().UTC()

	if wineIDs == nil {
		wineIDs = []int64{}
	}
	idsJSON, err := json.Marshal(wineIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal wine ids")
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO messages (session_id, role, content, wine_ids, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		sessionID, string(role), content, idsJSON, now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert message for session %d", sessionID)
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

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID int64, limit int) ([]model.Message, error) {
	query := `SELECT id, session_id, role, content, wine_ids, created_at FROM messages WHERE session_id = $1 ORDER BY created_at ASC, id ASC`
	args := []any{sessionID}
	if limit > 0 {
		// Most recent N, returned in chronological order.
		query = `SELECT id, session_id, role, content, wine_ids, created_at FROM (
			SELECT id, session_id, role, content, wine_ids, created_at FROM messages
			WHERE session_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2
		) recent ORDER BY created_at ASC, id ASC`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list messages")
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var idsJSON []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &idsJSON, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		if err := json.Unmarshal(idsJSON, &m.WineIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal wine ids")
		}
		msgs = append(msgs, m)
	}
	return msgs, eris.Wrap(rows.Err(), "postgres: list messages iterate")
}

func (s *PostgresStore) CreateProposals(ctx context.Context, proposals []model.Proposal) error {
	if len(proposals) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, p := range proposals {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO proposals (session_id, message_id, wine_id, batch_id, mode, rank, journey_index, price, margin, reason, best, selected, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			p.SessionID, p.MessageID, p.WineID, p.BatchID, string(p.Mode), p.Rank, p.JourneyIndex, p.Price, p.Margin, p.Reason, p.Best, p.Selected, now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert proposal for wine %d", p.WineID)
		}
	}
	return nil
}

func (s *PostgresStore) LatestProposalForWine(ctx context.Context, sessionID, wineID int64) (*model.Proposal, error) {
	var p model.Proposal
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, message_id, wine_id, batch_id, mode, rank, journey_index, price, margin, reason, best, selected, selected_at, created_at
		 FROM proposals WHERE session_id = $1 AND wine_id = $2
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		sessionID, wineID,
	).Scan(&p.ID, &p.SessionID, &p.MessageID, &p.WineID, &p.BatchID, &p.Mode, &p.Rank, &p.JourneyIndex,
		&p.Price, &p.Margin, &p.Reason, &p.Best, &p.Selected, &p.SelectedAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest proposal for wine %d", wineID)
	}
	return &p, nil
}

func (s *PostgresStore) MarkProposalSelected(ctx context.Context, proposalID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE proposals SET selected = true, selected_at = COALESCE(selected_at, $1) WHERE id = $2`,
		time.Now().UTC(), proposalID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark proposal selected %d", proposalID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("proposal not found: %d", proposalID)
	}
	return nil
}

func (s *PostgresStore) CreateSelectedProposal(ctx context.Context, p model.Proposal) (*model.Proposal, error) {
	now := time.Now().UTC()
	p.Selected = true
	p.SelectedAt = &now
	p.CreatedAt = now
	if p.BatchID == "" {
		p.BatchID = uuid.New().String()
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO proposals (session_id, message_id, wine_id, batch_id, mode, rank, journey_index, price, margin, reason, best, selected, selected_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, $12, $12) RETURNING id`,
		p.SessionID, p.MessageID, p.WineID, p.BatchID, string(p.Mode), p.Rank, p.JourneyIndex, p.Price, p.Margin, p.Reason, p.Best, now,
	).Scan(&p.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert selected proposal for wine %d", p.WineID)
	}
	return &p, nil
}

func (s *PostgresStore) ListProposalsBySession(ctx context.Context, sessionID int64) ([]model.Proposal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, message_id, wine_id, batch_id, mode, rank, journey_index, price, margin, reason, best, selected, selected_at, created_at
		 FROM proposals WHERE session_id = $1 ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list proposals")
	}
	defer rows.Close()

	var proposals []model.Proposal
	for rows.Next() {
		var p model.Proposal
		if err := rows.Scan(&p.ID, &p.SessionID, &p.MessageID, &p.WineID, &p.BatchID, &p.Mode, &p.Rank, &p.JourneyIndex,
			&p.Price, &p.Margin, &p.Reason, &p.Best, &p.Selected, &p.SelectedAt, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan proposal")
		}
		proposals = append(proposals, p)
	}
	return proposals, eris.Wrap(rows.Err(), "postgres: list proposals iterate")
}
