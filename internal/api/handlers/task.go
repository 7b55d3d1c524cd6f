package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/maumercado/task-queue-go/internal/events"
	"github.com/maumercado/task-queue-go/internal/logger"
	"github.com/maumercado/task-queue-go/internal/queue"
)

// TaskHandler handles task enqueue requests. Durable task history (get,
// cancel, list) is out of scope: the queue only knows about a task from
// the moment it is enqueued until it leaves the processing sidecar.
type TaskHandler struct {
	queue     *queue.Service
	publisher events.Publisher
}

// NewTaskHandler creates a new task handler. publisher may be nil, in
// which case enqueue events are not broadcast.
func NewTaskHandler(q *queue.Service, publisher events.Publisher) *TaskHandler {
	return &TaskHandler{queue: q, publisher: publisher}
}

// CreateRequest is the body of POST /tasks.
type CreateRequest struct {
	Queue  string                 `json:"queue"`
	Kwargs map[string]interface{} `json:"kwargs"`
}

// CreateResponse is returned on a successful enqueue.
type CreateResponse struct {
	TaskID string `json:"task_id"`
}

// Create handles POST /tasks: enqueue a task onto the named queue.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Queue == "" {
		h.respondError(w, http.StatusBadRequest, "queue is required")
		return
	}

	taskID, err := h.queue.Enqueue(r.Context(), req.Queue, req.Kwargs)
	if err != nil {
		logger.Error().Err(err).Str("queue", req.Queue).Msg("failed to enqueue task")
		h.respondError(w, http.StatusInternalServerError, "failed to enqueue task")
		return
	}

	logger.Info().Str("task_id", taskID).Str("queue", req.Queue).Msg("task enqueued")

	if h.publisher != nil {
		event := events.NewEvent(events.EventTaskEnqueued, events.TaskEventData(taskID, req.Queue, nil))
		if err := h.publisher.Publish(r.Context(), event); err != nil {
			logger.Error().Err(err).Str("task_id", taskID).Msg("failed to publish enqueue event")
		}
	}

	h.respondJSON(w, http.StatusCreated, CreateResponse{TaskID: taskID})
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *TaskHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
