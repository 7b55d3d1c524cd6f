// Package coordinator implements the Coordinator (G): the top-level
// lifecycle object that wires the Store Adapter, Queue Service, Task
// Registry, Control Plane and Scheduler together and drives the
// startup and shutdown sequence described in §4.6.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/maumercado/task-queue-go/internal/config"
	"github.com/maumercado/task-queue-go/internal/controlplane"
	"github.com/maumercado/task-queue-go/internal/events"
	"github.com/maumercado/task-queue-go/internal/queue"
	"github.com/maumercado/task-queue-go/internal/registry"
	"github.com/maumercado/task-queue-go/internal/scheduler"
	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/rs/zerolog"
)

const statusReportTriggerID = "internal:status_report"

// Coordinator owns the process-lifetime components: the store
// connection, the queue service built on top of it, the scheduler,
// and the control plane that supervises per-queue worker pools.
type Coordinator struct {
	store        store.Store
	registry     *registry.Registry
	queueSvc     *queue.Service
	scheduler    *scheduler.Scheduler
	controlPlane *controlplane.ControlPlane
	publisher    events.Publisher

	statusReportInterval time.Duration
	log                  zerolog.Logger
}

// New wires the Coordinator's components from cfg. publisher may be
// nil, in which case the status-report trigger only logs.
func New(cfg *config.Config, st store.Store, reg *registry.Registry, publisher events.Publisher, log zerolog.Logger) *Coordinator {
	queueSvc := queue.New(st, log)
	sched := scheduler.New(cfg.Scheduler.TickInterval, log)
	cp := controlplane.New(st, reg, queueSvc, cfg.RetryLimit, cfg.Store.BlockTimeout, cfg.Control.ReconcileInterval, log)

	return &Coordinator{
		store:                st,
		registry:              reg,
		queueSvc:              queueSvc,
		scheduler:             sched,
		controlPlane:          cp,
		publisher:             publisher,
		statusReportInterval:  cfg.Scheduler.StatusReportInterval,
		log:                   log.With().Str("component", "coordinator").Logger(),
	}
}

// Queue exposes the Queue Service, so callers (e.g. the admin API) can
// enqueue tasks directly.
func (c *Coordinator) Queue() *queue.Service { return c.queueSvc }

// ControlPlane exposes the Control Plane, so callers can drive an
// explicit pause and read queue status snapshots.
func (c *Coordinator) ControlPlane() *controlplane.ControlPlane { return c.controlPlane }

// Scheduler exposes the Scheduler, so callers can register additional
// interval or cron triggers beyond the built-in status report.
func (c *Coordinator) Scheduler() *scheduler.Scheduler { return c.scheduler }

// Run implements the startup sequence of §4.6: connect, recover every
// registered queue's processing sidecar, start the control plane
// (which in turn starts a worker pool per Running queue), start the
// scheduler, and install the internal status-report trigger. It
// returns once startup completes; the components it started keep
// running in the background until Shutdown is called.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("coordinator: store unreachable: %w", err)
	}

	for _, q := range c.registry.Queues() {
		n, err := c.queueSvc.Recover(ctx, q)
		if err != nil {
			return fmt.Errorf("coordinator: recovering queue %q: %w", q, err)
		}
		if n > 0 {
			c.log.Warn().Str("queue", q).Int("recovered", n).Msg("restored in-flight tasks from processing sidecar")
		}
	}

	c.controlPlane.Start(ctx)
	c.scheduler.Start(ctx)

	if err := c.scheduler.RegisterInterval(statusReportTriggerID, c.statusReportInterval, c.reportStatus); err != nil {
		return fmt.Errorf("coordinator: registering status report trigger: %w", err)
	}

	c.log.Info().Int("queues", len(c.registry.Queues())).Msg("coordinator running")
	return nil
}

// reportStatus is the handler behind the internal status-report
// trigger: it logs a snapshot of every queue and, if a publisher is
// configured, broadcasts it as a scheduler.report event.
func (c *Coordinator) reportStatus(ctx context.Context) error {
	snap := c.controlPlane.Snapshot(ctx)
	queues := make([]map[string]interface{}, 0, len(snap))

	for _, s := range snap {
		c.log.Info().
			Str("queue", s.Queue).
			Int("concurrency", s.Concurrency).
			Int64("main_count", s.MainCount).
			Int64("processing_count", s.ProcessingCount).
			Str("status", s.Status).
			Msg("queue status report")

		queues = append(queues, map[string]interface{}{
			"queue":            s.Queue,
			"concurrency":      s.Concurrency,
			"main_count":       s.MainCount,
			"processing_count": s.ProcessingCount,
			"status":           s.Status,
		})
	}

	if c.publisher == nil {
		return nil
	}

	event := events.NewEvent(events.EventSchedulerReport, events.SchedulerReportData(queues))
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.log.Error().Err(err).Msg("failed to publish status report")
	}
	return nil
}

// Shutdown stops the scheduler and control plane (which stops every
// live worker pool) and disconnects the store, in that order.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.log.Info().Msg("coordinator shutting down")

	if err := c.scheduler.Stop(ctx); err != nil {
		c.log.Warn().Err(err).Msg("scheduler stop timed out")
	}
	if err := c.controlPlane.Stop(ctx); err != nil {
		c.log.Warn().Err(err).Msg("control plane stop timed out")
	}
	if err := c.store.Close(); err != nil {
		c.log.Warn().Err(err).Msg("store close failed")
	}
	return nil
}
