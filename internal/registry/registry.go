// Package registry holds the process-local mapping from queue name
// to the handler, concurrency, and timeout bound to it (§4.1).
package registry

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Handler is the user-supplied function bound to a queue name. It
// takes the task's kwargs as a structured argument bag and returns an
// error to signal a retryable failure.
type Handler func(ctx context.Context, kwargs map[string]interface{}) error

var ErrFunctionNotFound = errors.New("registry: no handler registered for queue")

// Entry is a registered queue binding.
type Entry struct {
	Queue       string
	Handler     Handler
	Concurrency int
	Timeout     time.Duration // zero means no timeout
}

// Registry is a reader/writer-locked map from queue name to Entry.
// Registration is the only way to bind a handler; once workers have
// started, the map is read-only from their perspective, but nothing
// here enforces that at the type level — it is a usage contract (§4.1).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register binds a handler to a queue name. concurrency must be >= 1.
// A timeout of 0 means the handler runs unbounded.
func (r *Registry) Register(queue string, handler Handler, concurrency int, timeout time.Duration) error {
	if concurrency < 1 {
		return errors.New("registry: concurrency must be >= 1")
	}
	if handler == nil {
		return errors.New("registry: handler must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[queue] = Entry{
		Queue:       queue,
		Handler:     handler,
		Concurrency: concurrency,
		Timeout:     timeout,
	}
	return nil
}

// Lookup returns the entry bound to queue, or ErrFunctionNotFound.
func (r *Registry) Lookup(queue string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[queue]
	if !ok {
		return Entry{}, ErrFunctionNotFound
	}
	return e, nil
}

// Queues returns the names of every registered queue.
func (r *Registry) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
