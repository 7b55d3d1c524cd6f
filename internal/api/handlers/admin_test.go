package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/task-queue-go/internal/controlplane"
	"github.com/maumercado/task-queue-go/internal/queue"
	"github.com/maumercado/task-queue-go/internal/registry"
	"github.com/maumercado/task-queue-go/internal/store"
)

func setupTestAdminHandler(t *testing.T) (*miniredis.Miniredis, *AdminHandler) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewRedisStoreFromClient(client)
	reg := registry.New()
	require.NoError(t, reg.Register("orders", func(context.Context, map[string]interface{}) error { return nil }, 2, 0))

	qs := queue.New(st, zerolog.Nop())
	cp := controlplane.New(st, reg, qs, 3, 50*time.Millisecond, 10*time.Millisecond, zerolog.Nop())
	cp.Start(context.Background())
	t.Cleanup(func() { _ = cp.Stop(context.Background()) })

	return mr, NewAdminHandler(cp, st)
}

func TestAdminHandler_respondJSON(t *testing.T) {
	h := &AdminHandler{}

	w := httptest.NewRecorder()
	data := map[string]string{"status": "ok"}

	h.respondJSON(w, http.StatusOK, data)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "ok", response["status"])
}

func TestAdminHandler_respondError(t *testing.T) {
	h := &AdminHandler{}

	w := httptest.NewRecorder()
	h.respondError(w, http.StatusNotFound, "queue not found")

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "Not Found", response.Error)
	assert.Equal(t, "queue not found", response.Message)
}

func TestAdminHandler_PauseQueue_MissingDuration(t *testing.T) {
	_, h := setupTestAdminHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/queues/orders/pause", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("queue", "orders")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	h.PauseQueue(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "duration_seconds must be positive", response.Message)
}

func TestAdminHandler_PauseQueue_MissingQueueName(t *testing.T) {
	_, h := setupTestAdminHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/queues//pause", nil)
	w := httptest.NewRecorder()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("queue", "")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	h.PauseQueue(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_HealthCheck_Ok(t *testing.T) {
	_, h := setupTestAdminHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	h.HealthCheck(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestAdminHandler_HealthCheck_StoreUnreachable(t *testing.T) {
	mr, h := setupTestAdminHandler(t)
	mr.Close()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	h.HealthCheck(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminHandler_GetQueues_ReturnsSnapshot(t *testing.T) {
	_, h := setupTestAdminHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/queues", nil)
	w := httptest.NewRecorder()

	h.GetQueues(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "orders", resp[0]["Queue"])
}

func TestAdminHandler_PauseQueue_Succeeds(t *testing.T) {
	_, h := setupTestAdminHandler(t)

	body, _ := json.Marshal(PauseRequest{DurationSeconds: 10})
	req := httptest.NewRequest(http.MethodPost, "/queues/orders/pause", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("queue", "orders")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()

	h.PauseQueue(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, controlplane.StatusPaused, resp["status"])
}
