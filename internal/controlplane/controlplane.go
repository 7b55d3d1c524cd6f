// Package controlplane implements the Control Plane (F): it
// reconciles the desired queue status stored in the backing store
// against the live worker pools held in memory, and exposes the
// explicit pause(Q, duration) operation.
package controlplane

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maumercado/task-queue-go/internal/metrics"
	"github.com/maumercado/task-queue-go/internal/queue"
	"github.com/maumercado/task-queue-go/internal/registry"
	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/maumercado/task-queue-go/internal/worker"
	"github.com/rs/zerolog"
)

const (
	StatusRunning = "Running"
	StatusPaused  = "Paused"
)

func statusKey(queueName string) string {
	return "queue_status:" + queueName
}

// QueueStatus is a point-in-time snapshot of one queue, the shape the
// Coordinator's periodic status report (§4.6 step 6) emits per queue.
type QueueStatus struct {
	Queue           string
	Concurrency     int
	MainCount       int64
	ProcessingCount int64
	Status          string
}

// ControlPlane owns the set of live pools by queue name and the
// in-memory mirror of each queue's last-observed desired status.
type ControlPlane struct {
	store        store.Store
	registry     *registry.Registry
	queueSvc     *queue.Service
	retryLimit   int
	blockTimeout time.Duration

	reconcileInterval time.Duration

	mu     sync.Mutex
	pools  map[string]*worker.Pool
	mirror map[string]string

	stopCh chan struct{}
	wg     sync.WaitGroup
	log    zerolog.Logger
}

func New(s store.Store, reg *registry.Registry, svc *queue.Service, retryLimit int, blockTimeout, reconcileInterval time.Duration, log zerolog.Logger) *ControlPlane {
	return &ControlPlane{
		store:             s,
		registry:          reg,
		queueSvc:          svc,
		retryLimit:        retryLimit,
		blockTimeout:      blockTimeout,
		reconcileInterval: reconcileInterval,
		pools:             make(map[string]*worker.Pool),
		mirror:            make(map[string]string),
		stopCh:            make(chan struct{}),
		log:               log.With().Str("component", "controlplane").Logger(),
	}
}

// Start performs an initial reconcile (which spins up pools for every
// registered queue whose desired status is Running — satisfying the
// Coordinator's "start pools" startup step) and then begins the 5s
// reconcile tick loop.
func (cp *ControlPlane) Start(ctx context.Context) {
	cp.reconcile(ctx)

	cp.wg.Add(1)
	go func() {
		defer cp.wg.Done()
		ticker := time.NewTicker(cp.reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-cp.stopCh:
				return
			case <-ticker.C:
				cp.reconcile(ctx)
			}
		}
	}()
}

// Stop halts the reconcile loop and stops every live pool.
func (cp *ControlPlane) Stop(ctx context.Context) error {
	close(cp.stopCh)
	done := make(chan struct{})
	go func() {
		cp.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	cp.mu.Lock()
	pools := make([]*worker.Pool, 0, len(cp.pools))
	for _, p := range cp.pools {
		pools = append(pools, p)
	}
	cp.pools = make(map[string]*worker.Pool)
	cp.mu.Unlock()

	for _, p := range pools {
		_ = p.Stop(ctx)
	}
	return nil
}

// reconcile compares desired status against the in-memory mirror for
// every registered queue, per §4.5.
func (cp *ControlPlane) reconcile(ctx context.Context) {
	metrics.RecordReconcile()

	for _, q := range cp.registry.Queues() {
		desired := cp.readStatus(ctx, q)

		cp.mu.Lock()
		current, known := cp.mirror[q]
		if known && current == desired {
			cp.mu.Unlock()
			continue
		}

		if desired == StatusPaused {
			pool := cp.pools[q]
			delete(cp.pools, q)
			cp.mirror[q] = StatusPaused
			cp.mu.Unlock()

			cp.stopAndDrain(ctx, q, pool)
			continue
		}

		entry, err := cp.registry.Lookup(q)
		if err != nil {
			cp.mu.Unlock()
			cp.log.Error().Err(err).Str("queue", q).Msg("cannot start pool: no handler registered")
			continue
		}
		pool := worker.NewPool(q, cp.queueSvc, cp.registry, entry.Concurrency, cp.retryLimit, cp.blockTimeout, cp.log)
		pool.Start(ctx)
		cp.pools[q] = pool
		cp.mirror[q] = StatusRunning
		cp.mu.Unlock()
	}
}

func (cp *ControlPlane) stopAndDrain(ctx context.Context, queueName string, pool *worker.Pool) {
	if pool != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := pool.Stop(stopCtx); err != nil {
			cp.log.Warn().Err(err).Str("queue", queueName).Msg("pool stop timed out on pause")
		}
		cancel()
	}

	if _, err := cp.queueSvc.Recover(ctx, queueName); err != nil {
		cp.log.Error().Err(err).Str("queue", queueName).Msg("drain on pause failed")
	}
	metrics.RecordPauseEvent(queueName)
}

// readStatus reads queue_status:Q; absence means Running, and per §9
// any value other than the literal "Paused" is also treated as
// Running.
func (cp *ControlPlane) readStatus(ctx context.Context, queueName string) string {
	val, ok, err := cp.store.Get(ctx, statusKey(queueName))
	if err != nil {
		cp.log.Error().Err(err).Str("queue", queueName).Msg("failed to read queue status; assuming Running")
		return StatusRunning
	}
	if !ok {
		return StatusRunning
	}
	if val == StatusPaused {
		return StatusPaused
	}
	return StatusRunning
}

// Pause implements the explicit pause(Q, duration_s) operation (§4.5).
// It mutates the in-memory mirror synchronously before returning, so a
// reconcile tick racing immediately after observes the update: pause
// wins immediately, reconcile only confirms it next tick (§9).
func (cp *ControlPlane) Pause(ctx context.Context, queueName string, duration time.Duration) error {
	if err := cp.store.Set(ctx, statusKey(queueName), StatusPaused, duration); err != nil {
		return fmt.Errorf("controlplane: pause failed: %w", err)
	}

	cp.mu.Lock()
	alreadyPaused := cp.mirror[queueName] == StatusPaused
	cp.mirror[queueName] = StatusPaused
	pool := cp.pools[queueName]
	delete(cp.pools, queueName)
	cp.mu.Unlock()

	if alreadyPaused {
		cp.log.Debug().Str("queue", queueName).Msg("already paused")
		return nil
	}

	cp.stopAndDrain(ctx, queueName, pool)
	return nil
}

// Snapshot returns the data the Coordinator's status-report trigger
// emits: per queue, concurrency, main/processing counts, and status.
func (cp *ControlPlane) Snapshot(ctx context.Context) []QueueStatus {
	queues := cp.registry.Queues()
	out := make([]QueueStatus, 0, len(queues))

	for _, q := range queues {
		entry, err := cp.registry.Lookup(q)
		if err != nil {
			continue
		}
		mainCount, _ := cp.queueSvc.Count(ctx, q)
		procCount, _ := cp.queueSvc.CountProcessing(ctx, q)

		cp.mu.Lock()
		status, known := cp.mirror[q]
		cp.mu.Unlock()
		if !known {
			status = StatusRunning
		}

		metrics.SetQueueDepth(q, float64(mainCount))
		metrics.SetProcessingDepth(q, float64(procCount))

		out = append(out, QueueStatus{
			Queue:           q,
			Concurrency:     entry.Concurrency,
			MainCount:       mainCount,
			ProcessingCount: procCount,
			Status:          status,
		})
	}
	return out
}
