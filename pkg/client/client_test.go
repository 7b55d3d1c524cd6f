package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueue_SendsQueueAndKwargs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "emails", body["queue"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(EnqueueResponse{TaskID: "abc-123"})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	id, err := c.Enqueue(context.Background(), "emails", map[string]interface{}{"to": "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
}

func TestPauseQueue_PostsDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/queues/emails/pause", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(60), body["duration_seconds"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	require.NoError(t, c.PauseQueue(context.Background(), "emails", 60))
}

func TestListQueues_DecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/queues", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]QueueStatus{
			{Queue: "emails", Concurrency: 4, MainCount: 2, ProcessingCount: 1, Status: "Running"},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	queues, err := c.ListQueues(context.Background())
	require.NoError(t, err)
	require.Len(t, queues, 1)
	assert.Equal(t, "emails", queues[0].Queue)
	assert.Equal(t, "Running", queues[0].Status)
}

func TestCheckHealth_ReturnsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	health, err := c.CheckHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}

func TestDoJSON_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Enqueue(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestNew_RejectsEmptyBaseURL(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestWithAPIKey_SetsAuthorizationHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithAPIKey("secret"))
	require.NoError(t, err)
	_, err = c.CheckHealth(context.Background())
	require.NoError(t, err)
}
