// Package scheduler implements the Scheduler (E): interval and cron
// triggers, ticked every second, each fired without overlapping
// itself.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maumercado/task-queue-go/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// HandlerFunc is the function a trigger fires. Errors are logged and
// never crash the scheduler.
type HandlerFunc func(ctx context.Context) error

type kind int

const (
	kindInterval kind = iota
	kindCron
)

// trigger holds one registered interval or cron rule and its
// is_running guard (§3, §4.4).
type trigger struct {
	id       string
	kind     kind
	interval time.Duration
	schedule cron.Schedule
	handler  HandlerFunc

	mu      sync.Mutex
	nextRun time.Time
	lastRun time.Time
	running bool
}

func (tr *trigger) computeNext(after time.Time) time.Time {
	if tr.kind == kindInterval {
		return after.Add(tr.interval)
	}
	return tr.schedule.Next(after)
}

// Scheduler holds the set of registered triggers and runs the 1s tick
// loop described in §4.4.
type Scheduler struct {
	mu           sync.RWMutex
	triggers     map[string]*trigger
	tickInterval time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
	log          zerolog.Logger

	parser cron.Parser
}

func New(tickInterval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		triggers:     make(map[string]*trigger),
		tickInterval: tickInterval,
		stopCh:       make(chan struct{}),
		log:          log.With().Str("component", "scheduler").Logger(),
		parser:       cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// RegisterInterval binds a handler to fire every period, starting
// period from now.
func (s *Scheduler) RegisterInterval(id string, period time.Duration, handler HandlerFunc) error {
	if period <= 0 {
		return fmt.Errorf("scheduler: interval period must be positive")
	}
	tr := &trigger{id: id, kind: kindInterval, interval: period, handler: handler}
	tr.nextRun = time.Now().Add(period)
	return s.register(tr)
}

// RegisterCron binds a handler to fire on a standard 5-field cron
// expression (minute hour day-of-month month day-of-week).
func (s *Scheduler) RegisterCron(id string, expr string, handler HandlerFunc) error {
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q: %w", expr, err)
	}
	tr := &trigger{id: id, kind: kindCron, schedule: schedule, handler: handler}
	tr.nextRun = schedule.Next(time.Now())
	return s.register(tr)
}

func (s *Scheduler) register(tr *trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.triggers[tr.id]; exists {
		return fmt.Errorf("scheduler: trigger %q already registered", tr.id)
	}
	s.triggers[tr.id] = tr
	return nil
}

// Start runs the tick loop until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case now := <-ticker.C:
				s.tick(ctx, now)
			}
		}
	}()
	s.log.Info().Int("triggers", len(s.triggers)).Msg("scheduler started")
}

func (s *Scheduler) Stop(ctx context.Context) error {
	close(s.stopCh)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick checks every trigger; any that are due and not already running
// are dispatched as an independent goroutine.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.RLock()
	triggers := make([]*trigger, 0, len(s.triggers))
	for _, tr := range s.triggers {
		triggers = append(triggers, tr)
	}
	s.mu.RUnlock()

	for _, tr := range triggers {
		s.maybeFire(ctx, tr, now)
	}
}

func (s *Scheduler) maybeFire(ctx context.Context, tr *trigger, now time.Time) {
	tr.mu.Lock()
	if tr.running || now.Before(tr.nextRun) {
		tr.mu.Unlock()
		return
	}
	tr.running = true
	tr.mu.Unlock()

	go func() {
		log := s.log.With().Str("trigger_id", tr.id).Logger()
		metrics.RecordTriggerFire(tr.id)
		if err := tr.handler(ctx); err != nil {
			log.Error().Err(err).Msg("trigger handler failed")
		}

		tr.mu.Lock()
		finished := time.Now()
		tr.lastRun = finished
		tr.nextRun = tr.computeNext(finished)
		tr.running = false
		tr.mu.Unlock()
	}()
}
