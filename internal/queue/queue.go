// Package queue implements the reliable queue protocol (B) over the
// Store Adapter: enqueue, reliable dequeue with a processing-queue
// sidecar, mark-complete, requeue, and crash recovery.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/maumercado/task-queue-go/internal/task"
	"github.com/rs/zerolog"
)

var (
	ErrEnqueueFailed    = errors.New("queue: enqueue failed")
	ErrDequeueFailed    = errors.New("queue: dequeue failed")
	ErrRequeueFailed    = errors.New("queue: requeue failed")
	ErrProcessingFailed = errors.New("queue: processing operation failed")
)

const processingSuffix = ":processing"

// Service implements the queue protocol described in §4.2 on top of a
// Store. One Service instance is shared by every queue name; the
// queue name is simply the list key.
type Service struct {
	store store.Store
	log   zerolog.Logger
}

func New(s store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, log: log.With().Str("component", "queue").Logger()}
}

func processingKey(queue string) string {
	return queue + processingSuffix
}

// Store returns the underlying Store, so callers (e.g. the admin API's
// health check) can reach it without threading it through separately.
func (s *Service) Store() store.Store { return s.store }

// Enqueue mints an id, builds a pending task, encodes it canonically,
// and right-pushes it onto the queue's main list.
func (s *Service) Enqueue(ctx context.Context, queue string, kwargs map[string]interface{}) (string, error) {
	t := task.New(queue, kwargs)

	data, err := t.Encode()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	if err := s.store.RPush(ctx, queue, string(data)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	return t.ID, nil
}

// Dequeue blocking-pops from the queue's main list with the given
// timeout, then right-pushes the exact popped bytes onto the
// processing sidecar before decoding and returning.
//
// This is deliberately two separate store calls, not an atomic
// move — the store contract (§6) exposes blpop and rpush as distinct
// primitives, and the gap between them is compensated for by Recover
// at startup, not papered over with a single-command primitive.
func (s *Service) Dequeue(ctx context.Context, queue string, blockTimeout time.Duration) (*task.Task, error) {
	kv, err := s.store.BLPop(ctx, blockTimeout, queue)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDequeueFailed, err)
	}
	if kv == nil {
		return nil, nil // none: block timeout elapsed with no task
	}

	if err := s.store.RPush(ctx, processingKey(queue), kv.Value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDequeueFailed, err)
	}

	t, err := task.Decode([]byte(kv.Value))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDequeueFailed, err)
	}
	return t, nil
}

// MarkComplete scans the processing sidecar in order for the first
// entry whose decoded id matches, and removes it by exact-value
// match. Idempotent: zero matches is not an error.
func (s *Service) MarkComplete(ctx context.Context, queue string, id string) error {
	entries, err := s.store.LRange(ctx, processingKey(queue), 0, -1)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}

	for _, entry := range entries {
		t, err := task.Decode([]byte(entry))
		if err != nil {
			continue
		}
		if t.ID == id {
			if _, err := s.store.LRem(ctx, processingKey(queue), 1, entry); err != nil {
				return fmt.Errorf("%w: %v", ErrProcessingFailed, err)
			}
			return nil
		}
	}
	return nil
}

// Requeue resets status to pending, clears start_time, bumps
// retry_count, and right-pushes the task onto the queue's tail. It
// does not touch the sidecar; mark_complete does that.
func (s *Service) Requeue(ctx context.Context, queue string, t *task.Task) error {
	t.PrepareForRequeue()

	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequeueFailed, err)
	}

	if err := s.store.RPush(ctx, queue, string(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrRequeueFailed, err)
	}
	return nil
}

// Recover restores any bytes stranded on the processing sidecar
// (e.g. by a crash between dequeue's two steps, or mid-flight work
// lost on shutdown) to the head of the main queue, preserving their
// original order, then deletes the sidecar. Idempotent: running it
// twice with no intervening activity is a no-op the second time.
func (s *Service) Recover(ctx context.Context, queue string) (int, error) {
	entries, err := s.store.LRange(ctx, processingKey(queue), 0, -1)
	if err != nil {
		return 0, fmt.Errorf("queue: recover failed: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	// Left-push in reverse so the original head-to-tail order ends up
	// at the head of the main queue.
	for i := len(entries) - 1; i >= 0; i-- {
		if err := s.store.LPush(ctx, queue, entries[i]); err != nil {
			return 0, fmt.Errorf("queue: recover failed: %w", err)
		}
	}

	if err := s.store.Del(ctx, processingKey(queue)); err != nil {
		return 0, fmt.Errorf("queue: recover failed: %w", err)
	}

	s.log.Info().Str("queue", queue).Int("count", len(entries)).Msg("recovered stranded tasks")
	return len(entries), nil
}

// Count returns the main list's length.
func (s *Service) Count(ctx context.Context, queue string) (int64, error) {
	return s.store.LLen(ctx, queue)
}

// CountProcessing returns the processing sidecar's length.
func (s *Service) CountProcessing(ctx context.Context, queue string) (int64, error) {
	return s.store.LLen(ctx, processingKey(queue))
}
