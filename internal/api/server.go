// Package api exposes the optional status/catalog HTTP endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// StatusFunc returns the capture loop's current status snapshot.
type StatusFunc func() domain.Status

// Server serves GET /status and GET /recordings. Off unless an address is
// configured; the pipeline never depends on it.
type Server struct {
	server  *http.Server
	status  StatusFunc
	catalog domain.RecordingCatalog // nil disables /recordings
	logger  *zap.Logger
}

// NewServer creates the HTTP server on addr.
func NewServer(addr string, status StatusFunc, catalog domain.RecordingCatalog, logger *zap.Logger) *Server {
	s := &Server{
		status:  status,
		catalog: catalog,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/status", s.handleStatus)
	r.Get("/recordings", s.handleRecordings)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status endpoint listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("status endpoint failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		http.Error(w, "recordings catalog disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := s.catalog.List(r.Context(), limit)
	if err != nil {
		s.logger.Warn("failed to list recordings", zap.Error(err))
		http.Error(w, "failed to list recordings", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []domain.Recording{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
