package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maumercado/task-queue-go/internal/controlplane"
	"github.com/maumercado/task-queue-go/internal/logger"
	"github.com/maumercado/task-queue-go/internal/store"
)

// AdminHandler exposes operational control over queues: status
// snapshots, explicit pause, and a store health check.
type AdminHandler struct {
	controlPlane *controlplane.ControlPlane
	store        store.Store
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cp *controlplane.ControlPlane, st store.Store) *AdminHandler {
	return &AdminHandler{controlPlane: cp, store: st}
}

// GetQueues handles GET /queues: a status snapshot of every registered
// queue (main/processing depths, concurrency, running or paused).
func (h *AdminHandler) GetQueues(w http.ResponseWriter, r *http.Request) {
	snap := h.controlPlane.Snapshot(r.Context())
	h.respondJSON(w, http.StatusOK, snap)
}

// PauseRequest is the body of POST /queues/{queue}/pause.
type PauseRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

// PauseQueue handles POST /queues/{queue}/pause: stop the queue's
// worker pool, drain its processing sidecar back to the main queue,
// and hold it paused for the requested duration.
func (h *AdminHandler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	queueName := chi.URLParam(r, "queue")
	if queueName == "" {
		h.respondError(w, http.StatusBadRequest, "queue is required")
		return
	}

	var req PauseRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.DurationSeconds <= 0 {
		h.respondError(w, http.StatusBadRequest, "duration_seconds must be positive")
		return
	}

	duration := time.Duration(req.DurationSeconds) * time.Second
	if err := h.controlPlane.Pause(r.Context(), queueName, duration); err != nil {
		logger.Error().Err(err).Str("queue", queueName).Msg("failed to pause queue")
		h.respondError(w, http.StatusInternalServerError, "failed to pause queue")
		return
	}

	logger.Info().Str("queue", queueName).Dur("duration", duration).Msg("queue paused")
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"queue":            queueName,
		"status":           controlplane.StatusPaused,
		"duration_seconds": req.DurationSeconds,
	})
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck handles GET /healthz: confirm the store is reachable.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		logger.Error().Err(err).Msg("health check failed: store unreachable")
		h.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	h.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *AdminHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *AdminHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
