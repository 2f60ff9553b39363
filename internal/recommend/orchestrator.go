// Package recommend implements the recommendation engine: catalog
// filtering feeding a two-stage language-model pipeline (structured
// selection, then prose), validation and repair of the untrusted
// selection, a legacy text-mining fallback, and proposal tracking.
package recommend

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/liber-ai/sommelier/internal/catalog"
	"github.com/liber-ai/sommelier/internal/config"
	"github.com/liber-ai/sommelier/internal/model"
	"github.com/liber-ai/sommelier/internal/store"
	"github.com/liber-ai/sommelier/pkg/anthropic"
)

// ErrServiceUnavailable signals that the language-model transport failed
// on every path. The caller should tell the guest to retry shortly.
var ErrServiceUnavailable = eris.New("recommend: service temporarily unavailable")

const (
	selectionHistoryTurns     = 3
	communicationHistoryTurns = 2
	topPicks                  = 3
)

// Engine drives one conversation turn end to end: phase machine, filter,
// the two model calls, validation, fallbacks and response assembly.
type Engine struct {
	store   store.Store
	styles  *StyleSet
	tracker *Tracker
	sel     selector
	comm    communicator
}

// NewEngine wires the engine. The client should already be rate limited.
func NewEngine(client anthropic.Client, st store.Store, styles *StyleSet, cfg config.RecommendConfig, selectionModel, communicationModel string) *Engine {
	return &Engine{
		store:   st,
		styles:  styles,
		tracker: NewTracker(st),
		sel: selector{
			client:      client,
			model:       selectionModel,
			timeout:     time.Duration(cfg.SelectionTimeoutSecs) * time.Second,
			temperature: cfg.SelectionTemperature,
			maxTokens:   cfg.SelectionMaxTokens,
		},
		comm: communicator{
			client:    client,
			model:     communicationModel,
			timeout:   time.Duration(cfg.CommunicationTimeoutSecs) * time.Second,
			maxTokens: cfg.CommunicationMaxTokens,
		},
	}
}

// Tracker exposes proposal confirmation for the HTTP layer.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// Respond handles one guest turn. It mutates session.Context (phase and
// preferences live there); the caller persists the context afterwards.
func (e *Engine) Respond(ctx context.Context, session *model.Session, venue *model.Venue, userMsg string) (*model.Recommendation, error) {
	cc := &session.Context

	if cc.Phase != model.PhaseRecommending {
		if preferencesComplete(cc.Preferences) {
			// The turn already carries full structured preferences:
			// skip the opening exchange entirely.
			cc.Phase = model.PhaseRecommending
		} else {
			rec := e.openingReply(ctx, venue, *cc)
			cc.Phase = model.PhaseRecommending
			return rec, nil
		}
	}

	return e.recommend(ctx, session, venue, userMsg)
}

// preferencesComplete reports whether the context already carries enough
// structure to recommend without the opening probe.
func preferencesComplete(p model.Preferences) bool {
	return p.Color != "" && p.Mode != ""
}

// openingReply welcomes the table without naming any wine. The model
// call is short and optional: on any failure the template serves.
func (e *Engine) openingReply(ctx context.Context, venue *model.Venue, cc model.ConversationContext) *model.Recommendation {
	style := e.styles.Get(venue.SommelierStyle)

	msg, err := e.comm.Communicate(ctx, buildCommunicationSystem(style), buildOpeningPrompt(venue, style, cc), nil)
	if err != nil || msg == "" {
		logFallback("opening", err)
		msg = templateOpeningMessage(venue, style, cc)
	}
	return &model.Recommendation{Message: msg, Opening: true}
}

func (e *Engine) recommend(ctx context.Context, session *model.Session, venue *model.Venue, userMsg string) (*model.Recommendation, error) {
	prefs := session.Context.Preferences
	mode := prefs.Mode
	if mode == "" {
		mode = model.ModeSingle
	}

	wines, err := e.store.ListAvailableWines(ctx, venue.ID)
	if err != nil {
		return nil, eris.Wrap(err, "recommend: load catalog")
	}

	filtered := catalog.Filter(wines, prefs)
	if len(filtered) == 0 {
		return &model.Recommendation{Message: noWinesMessage, Mode: mode}, nil
	}

	featured := resolveFeatured(venue, filtered)
	style := e.styles.Get(venue.SommelierStyle)

	var (
		ranked   []model.RankedWine
		journeys []model.Journey
	)

	raw, selErr := e.sel.Select(ctx,
		selectionSystem(mode),
		buildSelectionPrompt(venue, session.Context, filtered, featured, userMsg),
		e.history(ctx, session.ID, selectionHistoryTurns),
	)
	if selErr == nil {
		if mode == model.ModeJourney {
			journeys = validateJourneys(raw.Journeys, filtered, prefs.BottlesNeeded())
		} else {
			ranked = validateSingle(raw.Wines, filtered, featured)
		}
	} else {
		zap.L().Warn("selection stage failed, trying legacy path",
			zap.Int64("session_id", session.ID),
			zap.Error(selErr))
	}

	if selErr != nil || (mode == model.ModeJourney && len(journeys) == 0) {
		return e.legacyRecommend(ctx, session, venue, style, filtered, mode, userMsg)
	}

	rec := assemble(mode, ranked, journeys)

	topRanked := ranked
	if len(topRanked) > topPicks {
		topRanked = topRanked[:topPicks]
	}
	msg, commErr := e.comm.Communicate(ctx,
		buildCommunicationSystem(style),
		buildCommunicationPrompt(session.Context, topRanked, journeys, userMsg),
		e.history(ctx, session.ID, communicationHistoryTurns),
	)
	if commErr != nil || msg == "" {
		logFallback("communication", commErr)
		if mode == model.ModeJourney {
			msg = templateJourneyMessage(journeys)
		} else {
			msg = templateSingleMessage(topRanked)
		}
	}
	rec.Message = msg
	return rec, nil
}

// legacyRecommend is the fallback path: one free-form model call, mined
// for catalog mentions, with deterministic construction backing it up.
// Only when its transport also fails does the turn surface an error.
func (e *Engine) legacyRecommend(ctx context.Context, session *model.Session, venue *model.Venue, style Style, filtered []model.Wine, mode model.ProposalMode, userMsg string) (*model.Recommendation, error) {
	text, err := e.comm.Communicate(ctx,
		buildCommunicationSystem(style),
		buildLegacyPrompt(venue, style, session.Context, filtered, userMsg),
		e.history(ctx, session.ID, communicationHistoryTurns),
	)
	if err != nil {
		zap.L().Error("legacy path failed",
			zap.Int64("session_id", session.ID),
			zap.Error(err))
		return nil, ErrServiceUnavailable
	}

	mentioned := ExtractMentions(text, filtered)

	if mode == model.ModeJourney {
		bottles := session.Context.Preferences.BottlesNeeded()
		candidates := mentioned
		if len(candidates) < bottles {
			candidates = filtered
		}
		journeys := BuildJourneys(candidates, bottles)
		rec := assemble(mode, nil, journeys)
		rec.Message = text
		if rec.Message == "" {
			rec.Message = templateJourneyMessage(journeys)
		}
		return rec, nil
	}

	ranked := make([]model.RankedWine, len(mentioned))
	for i, w := range mentioned {
		ranked[i] = model.RankedWine{Wine: w, Rank: i + 1, Best: i == 0}
	}
	if len(ranked) == 0 && text == "" {
		ranked = fallbackRanking(filtered)
	}

	rec := assemble(mode, ranked, nil)
	rec.Message = text
	if rec.Message == "" {
		top := ranked
		if len(top) > topPicks {
			top = top[:topPicks]
		}
		rec.Message = templateSingleMessage(top)
	}
	return rec, nil
}

// Track persists the recommendation's proposals, best-effort.
func (e *Engine) Track(ctx context.Context, sessionID, messageID int64, rec *model.Recommendation) {
	e.tracker.Track(ctx, sessionID, messageID, rec)
}

// Confirm marks the guest's chosen wines selected. Idempotent.
func (e *Engine) Confirm(ctx context.Context, sessionID int64, wineIDs []int64) error {
	return e.tracker.Confirm(ctx, sessionID, wineIDs)
}

func selectionSystem(mode model.ProposalMode) string {
	if mode == model.ModeJourney {
		return selectionSystemJourney
	}
	return selectionSystemSingle
}

// assemble builds the structured half of the response: top picks, full
// ranking, journeys, surfaced wine ids and a fresh batch id.
func assemble(mode model.ProposalMode, ranked []model.RankedWine, journeys []model.Journey) *model.Recommendation {
	rec := &model.Recommendation{
		Mode:    mode,
		BatchID: uuid.New().String(),
	}

	if mode == model.ModeJourney {
		rec.Journeys = journeys
		for _, j := range journeys {
			for _, w := range j.Wines {
				rec.WineIDs = append(rec.WineIDs, w.ID)
			}
		}
		return rec
	}

	rec.AllRankings = ranked
	top := ranked
	if len(top) > topPicks {
		top = top[:topPicks]
	}
	rec.Wines = top
	for _, r := range top {
		rec.WineIDs = append(rec.WineIDs, r.Wine.ID)
	}
	return rec
}

// history returns the session's last n turns, oldest first. Failures are
// tolerable: the prompt just loses context.
func (e *Engine) history(ctx context.Context, sessionID int64, n int) []anthropic.Message {
	msgs, err := e.store.ListMessages(ctx, sessionID, n)
	if err != nil {
		zap.L().Warn("history load failed", zap.Int64("session_id", sessionID), zap.Error(err))
		return nil
	}
	return historyMessages(msgs)
}
