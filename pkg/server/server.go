package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/elonfeng/handlescore/internal/refresh"
	"github.com/elonfeng/handlescore/internal/store"
	"github.com/elonfeng/handlescore/pkg/score"
	"github.com/elonfeng/handlescore/pkg/source"
)

// Server provides the HTTP API.
type Server struct {
	store   store.Store
	refresh *refresh.Service
	port    int
	log     *slog.Logger
}

// New creates a new HTTP server.
func New(s store.Store, r *refresh.Service, port int, logger *slog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		store:   s,
		refresh: r,
		port:    port,
		log:     logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/score/{platform}", s.handleScore)
	mux.HandleFunc("/api/v1/refresh", s.handleRefresh)
	mux.HandleFunc("/api/v1/analytics", s.handleAnalytics)
	mux.HandleFunc("/api/v1/daily", s.handleDaily)
	mux.HandleFunc("/api/v1/best-posts", s.handleBestPosts)
	mux.HandleFunc("/api/v1/connections", s.handleConnections)
	return mux
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("handlescore server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scoreRequest struct {
	Handle    string   `json:"handle"`
	UserID    string   `json:"user_id"`
	PVariable *float64 `json:"p_variable"`
	Force     bool     `json:"force"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	platform, err := source.ParsePlatform(r.PathValue("platform"))
	if err != nil {
		writeScoreError(w, err)
		return
	}

	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json body", "handle_score": 0})
		return
	}

	out, err := s.refresh.Refresh(r.Context(), refresh.Params{
		UserID:     req.UserID,
		Platform:   platform,
		Handle:     req.Handle,
		Adjustment: req.PVariable,
		Force:      req.Force,
	})
	if err != nil {
		s.log.Warn("score request failed", "platform", platform, "user_id", req.UserID, "error", err)
		writeScoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	force := r.URL.Query().Get("force") == "true"

	outcomes, err := s.refresh.RefreshUser(r.Context(), userID, force)
	resp := map[string]any{"data": outcomes, "count": len(outcomes)}
	if err != nil {
		resp["errors"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	analytics, err := s.store.GetUserAnalytics(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	conns, err := s.store.ListConnections(r.Context(), store.ConnectionListOpts{UserID: userID})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	connected := make([]source.Platform, 0, len(conns))
	for _, c := range conns {
		connected = append(connected, c.Platform)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":     analytics,
		"overview": score.BuildOverview(analytics, connected),
	})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	q := r.URL.Query()
	opts := store.DailyListOpts{UserID: q.Get("user_id"), Since: q.Get("since")}
	if opts.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	if p := q.Get("platform"); p != "" {
		platform, err := source.ParsePlatform(p)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		opts.Platform = platform
	}

	rows, err := s.store.ListDailyAggregates(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  rows,
		"count": len(rows),
	})
}

func (s *Server) handleBestPosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	posts, err := s.store.ListBestPosts(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  posts,
		"count": len(posts),
	})
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		conns, err := s.store.ListConnections(ctx, store.ConnectionListOpts{UserID: r.URL.Query().Get("user_id")})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": conns, "count": len(conns)})

	case http.MethodPost:
		var body struct {
			UserID   string `json:"user_id"`
			Platform string `json:"platform"`
			Handle   string `json:"handle"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
			return
		}
		platform, err := source.ParsePlatform(body.Platform)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if body.UserID == "" || body.Handle == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and handle are required"})
			return
		}
		conn := &store.Connection{UserID: body.UserID, Platform: platform, Handle: body.Handle}
		if err := s.store.AddConnection(ctx, conn); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, conn)

	case http.MethodDelete:
		platform, err := source.ParsePlatform(r.URL.Query().Get("platform"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		err = s.store.RemoveConnection(ctx, r.URL.Query().Get("user_id"), platform)
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// writeScoreError reports a failed scoring request. The score is always 0.
func writeScoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, source.ErrUnknownPlatform), errors.Is(err, refresh.ErrPlatformDisabled):
		status = http.StatusNotFound
	case errors.Is(err, refresh.ErrInvalidParams):
		status = http.StatusBadRequest
	case errors.Is(err, source.ErrUpstream):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{"error": err.Error(), "handle_score": 0})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
