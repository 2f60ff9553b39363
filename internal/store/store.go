package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/liber-ai/sommelier/internal/model"
)

// Store defines the persistence interface for venues, catalogs, sessions
// and proposals.
type Store interface {
	// Venues
	GetVenue(ctx context.Context, id int64) (*model.Venue, error)
	GetVenueBySlug(ctx context.Context, slug string) (*model.Venue, error)
	CreateVenue(ctx context.Context, v model.Venue) (*model.Venue, error)

	// Catalog
	ListAvailableWines(ctx context.Context, venueID int64) ([]model.Wine, error)
	GetWine(ctx context.Context, id int64) (*model.Wine, error)
	UpsertWine(ctx context.Context, w model.Wine) error

	// Sessions
	CreateSession(ctx context.Context, venueID int64, cc model.ConversationContext) (*model.Session, error)
	GetSessionByToken(ctx context.Context, token string) (*model.Session, error)
	UpdateSessionContext(ctx context.Context, sessionID int64, cc model.ConversationContext) error
	TouchSession(ctx context.Context, sessionID int64) error
	EndSession(ctx context.Context, sessionID int64, status model.SessionStatus) error
	SaveFeedback(ctx context.Context, sessionID int64, rating int, feedback string) error
	CleanupStaleSessions(ctx context.Context, staleAfter time.Duration) (int, error)

	// Messages
	AddMessage(ctx context.Context, sessionID int64, role model.MessageRole, content string, wineIDs []int64) (*model.Message, error)
	ListMessages(ctx context.Context, sessionID int64, limit int) ([]model.Message, error)

	// Proposals
	CreateProposals(ctx context.Context, proposals []model.Proposal) error
	LatestProposalForWine(ctx context.Context, sessionID, wineID int64) (*model.Proposal, error)
	MarkProposalSelected(ctx context.Context, proposalID int64) error
	CreateSelectedProposal(ctx context.Context, p model.Proposal) (*model.Proposal, error)
	ListProposalsBySession(ctx context.Context, sessionID int64) ([]model.Proposal, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, databaseURL, nil)
	case "sqlite":
		return NewSQLite(databaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
