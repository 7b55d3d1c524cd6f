// Package worker implements the per-queue worker pool (C): bounded
// concurrency executors, per-task timeout and retry, supervised work
// loops that restart after a fault.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maumercado/task-queue-go/internal/metrics"
	"github.com/maumercado/task-queue-go/internal/queue"
	"github.com/maumercado/task-queue-go/internal/registry"
	"github.com/maumercado/task-queue-go/internal/task"
	"github.com/rs/zerolog"
)

var ErrTimeout = errors.New("worker: handler exceeded its configured timeout")

// Pool runs N concurrent executor loops draining a single queue. The
// gate bounds in-flight handler invocations to N even across executor
// restarts, since it is shared by the pool rather than owned per
// executor.
type Pool struct {
	queueName    string
	queue        *queue.Service
	registry     *registry.Registry
	retryLimit   int
	blockTimeout time.Duration

	gate   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	current sync.Map // task ID -> started time.Time, for ActiveTasks()

	log zerolog.Logger
}

func NewPool(queueName string, svc *queue.Service, reg *registry.Registry, concurrency, retryLimit int, blockTimeout time.Duration, log zerolog.Logger) *Pool {
	return &Pool{
		queueName:    queueName,
		queue:        svc,
		registry:     reg,
		retryLimit:   retryLimit,
		blockTimeout: blockTimeout,
		gate:         make(chan struct{}, concurrency),
		stopCh:       make(chan struct{}),
		log:          log.With().Str("queue", queueName).Logger(),
	}
}

// Start spawns cap(gate) supervised executors.
func (p *Pool) Start(ctx context.Context) {
	n := cap(p.gate)
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.supervisedLoop(ctx, i)
	}
	p.log.Info().Int("concurrency", n).Msg("worker pool started")
}

// Stop signals every executor to exit and waits for them, up to the
// given context's deadline. After Stop returns nil the pool holds no
// resources; if the deadline passes first, Stop returns the context's
// error while executors still finishing in-flight tasks keep running.
func (p *Pool) Stop(ctx context.Context) error {
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.log.Warn().Msg("worker pool stop timed out")
		return ctx.Err()
	}
}

// ActiveTasks returns the number of handler invocations currently in
// flight for this pool.
func (p *Pool) ActiveTasks() int {
	count := 0
	p.current.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// supervisedLoop is the outer loop §4.3 calls for: if the inner work
// loop terminates abnormally (a panic, not a cancellation), sleep 1s
// and start a fresh one. If stop/ctx fires, it exits for good.
func (p *Pool) supervisedLoop(ctx context.Context, executorNum int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		cancelled := p.runWorkLoop(ctx)
		if cancelled {
			return
		}

		select {
		case <-time.After(time.Second):
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runWorkLoop is the work loop for one executor. It returns true if it
// exited because of stop/cancellation, false if it exited because of
// an internal fault (panic), in which case the supervisor restarts it.
func (p *Pool) runWorkLoop(ctx context.Context) (cancelled bool) {
	held := false
	defer func() {
		if r := recover(); r != nil {
			if held {
				<-p.gate
			}
			p.log.Error().Interface("panic", r).Msg("work loop terminated abnormally; restarting")
			cancelled = false
		}
	}()

	for {
		select {
		case <-p.stopCh:
			return true
		case <-ctx.Done():
			return true
		default:
		}

		select {
		case p.gate <- struct{}{}:
			held = true
		case <-p.stopCh:
			return true
		case <-ctx.Done():
			return true
		}

		t, err := p.queue.Dequeue(ctx, p.queueName, p.blockTimeout)
		if err != nil {
			<-p.gate
			held = false
			p.log.Error().Err(err).Msg("dequeue failed")
			if sleepOrStop(p.stopCh, ctx, time.Second) {
				return true
			}
			continue
		}

		if t == nil {
			<-p.gate
			held = false
			if sleepOrStop(p.stopCh, ctx, time.Second) {
				return true
			}
			continue
		}

		p.processTask(ctx, t)
		<-p.gate
		held = false
	}
}

func sleepOrStop(stopCh <-chan struct{}, ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return false
	case <-stopCh:
		return true
	case <-ctx.Done():
		return true
	}
}

// processTask implements §4.3's process_task, including its finally
// clause: the sidecar entry is always cleared, on every path.
func (p *Pool) processTask(ctx context.Context, t *task.Task) {
	log := p.log.With().Str("task_id", t.ID).Logger()
	p.current.Store(t.ID, time.Now())
	metrics.SetActiveWorkers(p.queueName, float64(p.ActiveTasks()))
	defer func() {
		p.current.Delete(t.ID)
		metrics.SetActiveWorkers(p.queueName, float64(p.ActiveTasks()))
	}()

	defer func() {
		if err := p.queue.MarkComplete(ctx, p.queueName, t.ID); err != nil {
			log.Error().Err(err).Msg("mark_complete failed; sidecar entry may be stranded until recovery")
		}
	}()

	entry, err := p.registry.Lookup(p.queueName)
	if err != nil {
		log.Error().Err(err).Msg("no handler registered for queue")
		metrics.RecordCompletion(p.queueName, "function_not_found", 0)
		return
	}

	t.Stamp(time.Now())

	start := time.Now()
	execErr := p.invoke(ctx, entry, t)
	duration := time.Since(start)

	if execErr == nil {
		metrics.RecordCompletion(p.queueName, "success", duration.Seconds())
		return
	}

	log.Error().Err(execErr).Dur("duration", duration).Msg("handler failed")

	if t.RetryCount < p.retryLimit {
		metrics.RecordRetry(p.queueName)
		if rerr := p.queue.Requeue(ctx, p.queueName, t); rerr != nil {
			log.Error().Err(rerr).Msg("requeue failed; task lost after sidecar clear")
		}
		return
	}

	log.Warn().Int("retry_count", t.RetryCount).Msg("retry budget exhausted; terminal failure")
	metrics.RecordCompletion(p.queueName, "retry_exhausted", duration.Seconds())
}

// invoke runs the registered handler, bounding the wait by the
// registry entry's configured timeout. There is no forced-kill
// primitive: on timeout, process_task stops waiting and treats it as
// a failure, but an unresponsive handler goroutine is simply
// abandoned, per §5's cancellation model.
func (p *Pool) invoke(ctx context.Context, entry registry.Entry, t *task.Task) error {
	handlerCtx := ctx
	var cancel context.CancelFunc
	if entry.Timeout > 0 {
		handlerCtx, cancel = context.WithTimeout(ctx, entry.Timeout)
		defer cancel()
	}

	resultCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- fmt.Errorf("handler panicked: %v", r)
			}
		}()
		resultCh <- entry.Handler(handlerCtx, t.Kwargs)
	}()

	if entry.Timeout <= 0 {
		return <-resultCh
	}

	timer := time.NewTimer(entry.Timeout)
	defer timer.Stop()
	select {
	case err := <-resultCh:
		return err
	case <-timer.C:
		return ErrTimeout
	}
}
