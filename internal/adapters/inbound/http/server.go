// Package http provides the inbound HTTP adapters of the keeper: health
// probes for the worker and the invocation endpoint of the serve mode.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/archon-research/stl/pyth-keeper/internal/ports/inbound"
)

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	// Addr is the address to listen on (e.g., ":8080")
	Addr string

	Logger *slog.Logger

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses. An invocation can take several
	// seconds, so this is larger than a probe needs.
	WriteTimeout time.Duration
}

// ServerConfigDefaults returns a config with default values.
func ServerConfigDefaults() ServerConfig {
	return ServerConfig{
		Addr:         ":8080",
		Logger:       slog.Default(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server serves the health probes and, when a Handler is given, the
// invocation routes.
//
// Endpoints:
//   - /health/ready  - 200 once the checker reports ready (readiness probe)
//   - /health/live   - 200 while the checker reports healthy (liveness probe)
//   - /health        - combined status for monitoring
//
// After shuttingDown is set every probe returns 503 so the orchestrator
// stops routing to this task before it exits.
type Server struct {
	server       *http.Server
	checker      inbound.HealthChecker
	shuttingDown *atomic.Bool
	logger       *slog.Logger
}

// NewServer creates a new server. handler may be nil.
func NewServer(config ServerConfig, checker inbound.HealthChecker, shuttingDown *atomic.Bool, handler *Handler) *Server {
	defaults := ServerConfigDefaults()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if shuttingDown == nil {
		shuttingDown = new(atomic.Bool)
	}

	s := &Server{
		checker:      checker,
		shuttingDown: shuttingDown,
		logger:       config.Logger.With("component", "http-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/ready", s.handleReady)
	mux.HandleFunc("GET /health/live", s.handleLive)
	mux.HandleFunc("GET /health", s.handleHealth)
	if handler != nil {
		handler.RegisterRoutes(mux)
	}

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins listening in a goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting http server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		respondJSON(s.logger, w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	if s.checker.IsReady() {
		respondJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
	} else {
		respondJSON(s.logger, w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
	}
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		respondJSON(s.logger, w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	if s.checker.IsHealthy() {
		respondJSON(s.logger, w, http.StatusOK, map[string]string{"status": "healthy"})
	} else {
		respondJSON(s.logger, w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		respondJSON(s.logger, w, http.StatusServiceUnavailable, map[string]any{
			"status":       "shutting_down",
			"ready":        false,
			"healthy":      false,
			"shuttingDown": true,
		})
		return
	}

	ready := s.checker.IsReady()
	healthy := s.checker.IsHealthy()
	status := "ok"
	statusCode := http.StatusOK
	if !ready || !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(s.logger, w, statusCode, map[string]any{
		"status":       status,
		"ready":        ready,
		"healthy":      healthy,
		"shuttingDown": false,
	})
}

func respondJSON(logger *slog.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}
