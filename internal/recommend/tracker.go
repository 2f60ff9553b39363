package recommend

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/liber-ai/sommelier/internal/model"
	"github.com/liber-ai/sommelier/internal/store"
)

// Tracker persists every surfaced wine as a proposal row for later
// analytics, and marks proposals selected when the guest confirms.
type Tracker struct {
	store store.Store
}

func NewTracker(st store.Store) *Tracker {
	return &Tracker{store: st}
}

// Track writes one proposal per wine in the recommendation, all sharing
// the batch id. It runs after the reply has been assembled and never
// fails the user-facing flow: persistence errors are logged and dropped.
func (t *Tracker) Track(ctx context.Context, sessionID, messageID int64, rec *model.Recommendation) {
	proposals := buildProposals(sessionID, messageID, rec)
	if len(proposals) == 0 {
		return
	}
	if err := t.store.CreateProposals(ctx, proposals); err != nil {
		zap.L().Warn("proposal tracking failed",
			zap.Int64("session_id", sessionID),
			zap.String("batch_id", rec.BatchID),
			zap.Error(err))
	}
}

// buildProposals flattens a recommendation into proposal rows. In journey
// mode the rank counter runs across the whole batch so ranks stay unique
// within it.
func buildProposals(sessionID, messageID int64, rec *model.Recommendation) []model.Proposal {
	var out []model.Proposal

	switch {
	case len(rec.Journeys) > 0:
		rank := 0
		for ji, j := range rec.Journeys {
			for _, w := range j.Wines {
				rank++
				out = append(out, model.Proposal{
					SessionID:    sessionID,
					MessageID:    messageID,
					WineID:       w.ID,
					BatchID:      rec.BatchID,
					Mode:         model.ModeJourney,
					Rank:         rank,
					JourneyIndex: ji + 1,
					Price:        w.Price,
					Margin:       w.Margin(),
					Reason:       j.Reason,
					Best:         rank == 1,
				})
			}
		}
	case len(rec.AllRankings) > 0:
		for _, r := range rec.AllRankings {
			out = append(out, model.Proposal{
				SessionID: sessionID,
				MessageID: messageID,
				WineID:    r.Wine.ID,
				BatchID:   rec.BatchID,
				Mode:      model.ModeSingle,
				Rank:      r.Rank,
				Price:     r.Wine.Price,
				Margin:    r.Wine.Margin(),
				Reason:    r.Reason,
				Best:      r.Best,
			})
		}
	}
	return out
}

// Confirm marks the guest's chosen wines as selected. For each wine the
// most recent unselected proposal is marked; a wine already confirmed is
// left alone, and a wine never proposed gets a fresh proposal inserted
// directly in the selected state. Safe to call twice with the same ids.
func (t *Tracker) Confirm(ctx context.Context, sessionID int64, wineIDs []int64) error {
	for _, wineID := range wineIDs {
		p, err := t.store.LatestProposalForWine(ctx, sessionID, wineID)
		if err != nil {
			return eris.Wrapf(err, "recommend: confirm wine %d", wineID)
		}

		if p != nil {
			if p.Selected {
				continue
			}
			if err := t.store.MarkProposalSelected(ctx, p.ID); err != nil {
				return eris.Wrapf(err, "recommend: confirm wine %d", wineID)
			}
			continue
		}

		wine, err := t.store.GetWine(ctx, wineID)
		if err != nil {
			return eris.Wrapf(err, "recommend: confirm wine %d", wineID)
		}
		if wine == nil {
			return eris.Errorf("recommend: confirm unknown wine %d", wineID)
		}
		_, err = t.store.CreateSelectedProposal(ctx, model.Proposal{
			SessionID: sessionID,
			WineID:    wineID,
			BatchID:   uuid.New().String(),
			Mode:      model.ModeSingle,
			Rank:      1,
			Price:     wine.Price,
			Margin:    wine.Margin(),
			Best:      true,
		})
		if err != nil {
			return eris.Wrapf(err, "recommend: confirm wine %d", wineID)
		}
	}
	return nil
}
