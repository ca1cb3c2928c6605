// handler.go exposes keeper invocations over HTTP:
//   - POST /v1/run:   run one invocation and return the Decision JSON
//   - POST /v1/reset: delete the persisted state of the configured feeds
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/archon-research/stl/pyth-keeper/internal/ports/inbound"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

const maxRequestBytes = 64 << 10

var _ inbound.HealthChecker = (*Handler)(nil)

// runRequest is the optional body of POST /v1/run.
type runRequest struct {
	UserArgs map[string]any `json:"userArgs"`
}

// Handler implements the invocation routes. Every request runs against the
// same storage and secrets.
type Handler struct {
	updater inbound.PriceUpdater
	storage outbound.KVStore
	secrets outbound.SecretStore
	runs    atomic.Int64
	logger  *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(updater inbound.PriceUpdater, storage outbound.KVStore, secrets outbound.SecretStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		updater: updater,
		storage: storage,
		secrets: secrets,
		logger:  logger.With("component", "http-handler"),
	}
}

// RegisterRoutes registers the invocation routes with mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/run", h.Run)
	mux.HandleFunc("POST /v1/reset", h.Reset)
}

// IsReady reports true: the handler holds no state that needs warming up.
func (h *Handler) IsReady() bool { return true }

// IsHealthy reports true while the process serves requests.
func (h *Handler) IsHealthy() bool { return true }

// Run executes one invocation. Cannot-execute outcomes are ordinary
// decisions and are returned with 200.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision := h.updater.Run(r.Context(), inbound.Invocation{
		Storage:  h.storage,
		Secrets:  h.secrets,
		UserArgs: req.UserArgs,
	})
	n := h.runs.Add(1)
	h.logger.Info("invocation served", "run", n, "canExec", decision.CanExec)

	respondJSON(h.logger, w, http.StatusOK, decision)
}

// Reset deletes the keeper's persisted state.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.updater.Reset(r.Context(), inbound.Invocation{
		Storage:  h.storage,
		Secrets:  h.secrets,
		UserArgs: req.UserArgs,
	})
	if err != nil {
		h.logger.Error("reset failed", "deleted", len(deleted), "error", err)
		respondJSON(h.logger, w, http.StatusInternalServerError, map[string]any{
			"error":   err.Error(),
			"deleted": deleted,
		})
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]any{"deleted": deleted})
}

// decodeBody decodes an optional JSON body into dst. An empty body leaves
// dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(h.logger, w, status, map[string]string{"error": message})
}
