package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client is a small hand-written SDK for the admin API: it speaks
// plain JSON over net/http rather than wrapping a generated client.
type Client struct {
	baseURL string
	opts    *options
	ws      *WebSocketClient
}

// New creates a new Client pointed at baseURL (e.g. "http://localhost:8081").
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("client: base URL must not be empty")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{baseURL: baseURL, opts: o}, nil
}

// EnqueueResponse is returned by Enqueue.
type EnqueueResponse struct {
	TaskID string `json:"task_id"`
}

// Enqueue submits kwargs to the named queue and returns the minted task ID.
func (c *Client) Enqueue(ctx context.Context, queue string, kwargs map[string]interface{}) (string, error) {
	body := map[string]interface{}{
		"queue":  queue,
		"kwargs": kwargs,
	}

	var out EnqueueResponse
	if err := c.doJSON(ctx, http.MethodPost, "/tasks", body, &out); err != nil {
		return "", err
	}
	return out.TaskID, nil
}

// PauseQueue pauses the named queue for the given duration, in seconds.
func (c *Client) PauseQueue(ctx context.Context, queue string, durationSeconds int) error {
	body := map[string]interface{}{
		"duration_seconds": durationSeconds,
	}
	return c.doJSON(ctx, http.MethodPost, "/queues/"+queue+"/pause", body, nil)
}

// QueueStatus is a single queue's reported status.
type QueueStatus struct {
	Queue           string `json:"queue"`
	Concurrency     int    `json:"concurrency"`
	MainCount       int64  `json:"main_count"`
	ProcessingCount int64  `json:"processing_count"`
	Status          string `json:"status"`
}

// ListQueues returns a snapshot of every registered queue's status.
func (c *Client) ListQueues(ctx context.Context) ([]QueueStatus, error) {
	var out []QueueStatus
	if err := c.doJSON(ctx, http.MethodGet, "/queues", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HealthResponse is returned by CheckHealth.
type HealthResponse struct {
	Status string `json:"status"`
}

// CheckHealth checks liveness of the server.
func (c *Client) CheckHealth(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConnectWebSocket establishes a WebSocket connection for real-time events.
func (c *Client) ConnectWebSocket(ctx context.Context) error {
	if c.ws != nil && c.ws.IsConnected() {
		return nil
	}
	c.ws = newWebSocketClient(c.baseURL, c.opts.apiKey)
	return c.ws.Connect(ctx)
}

// Events returns a channel that receives WebSocket events.
// Must call ConnectWebSocket first.
func (c *Client) Events() <-chan *Event {
	if c.ws == nil {
		ch := make(chan *Event)
		close(ch)
		return ch
	}
	return c.ws.Events()
}

// CloseWebSocket closes the WebSocket connection.
func (c *Client) CloseWebSocket() error {
	if c.ws == nil {
		return nil
	}
	return c.ws.Close()
}

// SubscribeEvents subscribes to specific event types.
func (c *Client) SubscribeEvents(eventTypes ...EventType) error {
	if c.ws == nil {
		return fmt.Errorf("websocket not connected")
	}
	return c.ws.Subscribe(eventTypes...)
}

// doJSON issues an HTTP request with a JSON body (if non-nil) and
// decodes a JSON response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.opts.applyHeaders(req)

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("client: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decoding response: %w", err)
	}
	return nil
}
