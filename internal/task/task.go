// Package task defines the wire-level unit of work passed between the
// queue service and the worker pool.
package task

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
)

var ErrInvalidTaskData = errors.New("task: invalid encoded task data")

// Task is the unit of work. Status is only ever "pending" in its
// encoded form; "processing" exists only implicitly, by virtue of the
// task's bytes residing on a queue's processing sidecar rather than
// its main list.
type Task struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Kwargs     map[string]interface{} `json:"kwargs"`
	Status     string                 `json:"status"`
	RetryCount int                    `json:"retry_count"`
	StartTime  *int64                 `json:"start_time,omitempty"`
}

// New mints a task ready for enqueue: status pending, retry_count 0,
// no start_time.
func New(name string, kwargs map[string]interface{}) *Task {
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	return &Task{
		ID:     uuid.New().String(),
		Name:   name,
		Kwargs: kwargs,
		Status: StatusPending,
	}
}

// Encode produces the canonical JSON bytes for this task. Go's
// encoding/json marshals map keys in sorted order and emits no
// incidental whitespace, so repeated calls on an unmodified task
// produce byte-identical output — the property the sidecar's
// remove-by-value match depends on.
func (t *Task) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// Decode parses a task from its encoded form.
func Decode(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Stamp sets start_time to now, in epoch seconds UTC. Called by the
// worker pool immediately before dispatch.
func (t *Task) Stamp(now time.Time) {
	secs := now.UTC().Unix()
	t.StartTime = &secs
}

// PrepareForRequeue bumps retry_count, clears start_time and resets
// status to pending, per the requeue operation's contract. It does
// not touch the sidecar; the caller (Queue Service) is responsible
// for that.
func (t *Task) PrepareForRequeue() {
	t.RetryCount++
	t.StartTime = nil
	t.Status = StatusPending
}
