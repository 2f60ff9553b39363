package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/liber-ai/sommelier/internal/config"
	"github.com/liber-ai/sommelier/internal/conversation"
	"github.com/liber-ai/sommelier/internal/model"
	"github.com/liber-ai/sommelier/internal/recommend"
	"github.com/liber-ai/sommelier/internal/store"
	"github.com/liber-ai/sommelier/pkg/anthropic"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sommelier API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		styles, err := recommend.LoadStyles(cfg.Recommend.StylesPath)
		if err != nil {
			return err
		}

		client := anthropic.NewRateLimitedClient(
			anthropic.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.RequestsPerSecond,
			cfg.Anthropic.Burst,
		)
		engine := recommend.NewEngine(client, st, styles, cfg.Recommend,
			cfg.Anthropic.SelectionModel, cfg.Anthropic.CommunicationModel)

		srv := newServer(st, engine, styles)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.router(cfg.Server.AllowedOrigins),
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			return cleanupLoop(gctx, st, cfg.Session)
		})

		return g.Wait()
	},
}

// cleanupLoop times out sessions that went quiet.
func cleanupLoop(ctx context.Context, st store.Store, sc config.SessionConfig) error {
	interval := time.Duration(sc.CleanupIntervalMins) * time.Minute
	staleAfter := time.Duration(sc.StaleAfterMins) * time.Minute

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := st.CleanupStaleSessions(ctx, staleAfter)
			if err != nil {
				zap.L().Warn("session cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Info("stale sessions timed out", zap.Int("count", n))
			}
		}
	}
}

type server struct {
	store   store.Store
	manager *conversation.Manager
	engine  *recommend.Engine
	styles  *recommend.StyleSet
}

func newServer(st store.Store, engine *recommend.Engine, styles *recommend.StyleSet) *server {
	return &server{
		store:   st,
		manager: conversation.NewManager(st),
		engine:  engine,
		styles:  styles,
	}
}

func (s *server) router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/{token}/end", s.handleEndSession)
		r.Get("/sessions/{token}/history", s.handleHistory)
		r.Post("/messages", s.handleMessage)
		r.Post("/confirm", s.handleConfirm)
		r.Post("/feedback", s.handleFeedback)
	})
	return r
}

// requestLogger logs each request with zap after it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VenueSlug string                     `json:"venue_slug"`
		Context   *model.ConversationContext `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VenueSlug == "" {
		writeError(w, http.StatusBadRequest, "venue_slug is required")
		return
	}

	var cc model.ConversationContext
	if req.Context != nil {
		cc = *req.Context
	}

	session, venue, err := s.manager.Start(r.Context(), req.VenueSlug, cc)
	if err != nil {
		if eris.Is(err, conversation.ErrVenueNotFound) {
			writeError(w, http.StatusNotFound, "venue not found")
			return
		}
		zap.L().Error("create session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	welcome := venue.WelcomeMessage
	if welcome == "" {
		welcome = s.styles.Get(venue.SommelierStyle).Intro
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_token": session.Token,
		"venue":         venue.Name,
		"message":       welcome,
	})
}

func (s *server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string                     `json:"session_token"`
		Message      string                     `json:"message"`
		Context      *model.ConversationContext `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionToken == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "session_token and message are required")
		return
	}

	ctx := r.Context()
	session, err := s.manager.Resume(ctx, req.SessionToken)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	venue, err := s.store.GetVenue(ctx, session.VenueID)
	if err != nil || venue == nil {
		zap.L().Error("venue load failed", zap.Int64("venue_id", session.VenueID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load venue")
		return
	}

	if req.Context != nil {
		mergeContext(&session.Context, *req.Context)
	}

	if _, err := s.manager.RecordUserTurn(ctx, session, req.Message); err != nil {
		zap.L().Error("record user turn failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not record message")
		return
	}

	rec, err := s.engine.Respond(ctx, session, venue, req.Message)
	if err != nil {
		if eris.Is(err, recommend.ErrServiceUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "the sommelier is briefly unavailable, please retry")
			return
		}
		zap.L().Error("recommendation failed", zap.Int64("session_id", session.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not produce a recommendation")
		return
	}

	msg, err := s.manager.RecordAssistantTurn(ctx, session, rec.Message, rec.WineIDs)
	if err != nil {
		zap.L().Warn("record assistant turn failed", zap.Error(err))
	} else {
		s.engine.Track(ctx, session.ID, msg.ID, rec)
	}

	if err := s.manager.SaveContext(ctx, session); err != nil {
		zap.L().Warn("save context failed", zap.Int64("session_id", session.ID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      rec.Message,
		"mode":         rec.Mode,
		"opening":      rec.Opening,
		"wines":        rec.Wines,
		"all_rankings": rec.AllRankings,
		"journeys":     rec.Journeys,
	})
}

// mergeContext folds a partial client-supplied context into the session's:
// only fields the client actually set are taken.
func mergeContext(dst *model.ConversationContext, src model.ConversationContext) {
	if len(src.Dishes) > 0 {
		dst.Dishes = src.Dishes
	}
	p := src.Preferences
	if p.Color != "" {
		dst.Preferences.Color = p.Color
	}
	if p.Mode != "" {
		dst.Preferences.Mode = p.Mode
	}
	if p.Budget != "" {
		dst.Preferences.Budget = model.CanonicalBudget(string(p.Budget))
	}
	if p.BudgetAmount > 0 {
		dst.Preferences.BudgetAmount = p.BudgetAmount
	}
	if p.Guests > 0 {
		dst.Preferences.Guests = p.Guests
	}
	if p.BottleCount > 0 {
		dst.Preferences.BottleCount = p.BottleCount
	}
}

func (s *server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string  `json:"session_token"`
		WineIDs      []int64 `json:"wine_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionToken == "" || len(req.WineIDs) == 0 {
		writeError(w, http.StatusBadRequest, "session_token and wine_ids are required")
		return
	}

	ctx := r.Context()
	session, err := s.store.GetSessionByToken(ctx, req.SessionToken)
	if err != nil {
		zap.L().Error("session load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := s.engine.Confirm(ctx, session.ID, req.WineIDs); err != nil {
		zap.L().Error("confirm failed", zap.Int64("session_id", session.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not confirm selection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (s *server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	err := s.manager.End(r.Context(), token, model.SessionCompleted)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (s *server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionToken string `json:"session_token"`
		Rating       int    `json:"rating"`
		Feedback     string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.manager.SaveFeedback(r.Context(), req.SessionToken, req.Rating, req.Feedback)
	if err != nil {
		if eris.Is(err, conversation.ErrInvalidRating) {
			writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
			return
		}
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	ctx := r.Context()

	session, err := s.store.GetSessionByToken(ctx, token)
	if err != nil {
		zap.L().Error("session load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	msgs, err := s.manager.History(ctx, session.ID, 0)
	if err != nil {
		zap.L().Error("history load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   session.Status,
		"context":  session.Context,
		"messages": msgs,
	})
}

// writeSessionError maps manager errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, conversation.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case eris.Is(err, conversation.ErrSessionEnded):
		writeError(w, http.StatusGone, "session has ended")
	default:
		zap.L().Error("session error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
