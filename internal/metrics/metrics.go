// Package metrics exposes the Prometheus instrumentation surface for
// the queue protocol, worker pool, scheduler, and control plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue Service metrics, keyed by queue name.
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_tasks_enqueued_total",
			Help: "Total number of tasks enqueued, by queue",
		},
		[]string{"queue"},
	)

	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_tasks_completed_total",
			Help: "Total number of tasks that reached a terminal outcome, by queue and outcome",
		},
		[]string{"queue", "outcome"}, // outcome: success, retry_exhausted, function_not_found
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskqueue_task_duration_seconds",
			Help:    "Handler execution duration in seconds, by queue",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"queue"},
	)

	TaskRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_task_retries_total",
			Help: "Total number of requeues due to failure or timeout, by queue",
		},
		[]string{"queue"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskqueue_queue_depth",
			Help: "Current length of a queue's main list",
		},
		[]string{"queue"},
	)

	ProcessingDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskqueue_processing_depth",
			Help: "Current length of a queue's processing sidecar",
		},
		[]string{"queue"},
	)

	// Worker Pool metrics.
	ActiveWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskqueue_active_workers",
			Help: "Current in-flight handler invocations, by queue",
		},
		[]string{"queue"},
	)

	// Scheduler metrics.
	TriggerFireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_trigger_fire_total",
			Help: "Total number of trigger firings, by trigger id",
		},
		[]string{"trigger"},
	)

	// Control Plane metrics.
	ReconcileTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskqueue_reconcile_total",
			Help: "Total number of control-plane reconcile ticks",
		},
	)

	PauseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_pause_events_total",
			Help: "Total number of pause transitions observed, by queue",
		},
		[]string{"queue"},
	)

	// HTTP metrics for the optional admin API.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskqueue_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WebSocket metrics for the status-report broadcast hub.
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskqueue_websocket_connections",
			Help: "Current number of WebSocket connections",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskqueue_websocket_messages_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)
)

func RecordEnqueue(queue string) {
	TasksEnqueued.WithLabelValues(queue).Inc()
}

func RecordCompletion(queue, outcome string, duration float64) {
	TasksCompleted.WithLabelValues(queue, outcome).Inc()
	TaskDuration.WithLabelValues(queue).Observe(duration)
}

func RecordRetry(queue string) {
	TaskRetries.WithLabelValues(queue).Inc()
}

func SetQueueDepth(queue string, depth float64) {
	QueueDepth.WithLabelValues(queue).Set(depth)
}

func SetProcessingDepth(queue string, depth float64) {
	ProcessingDepth.WithLabelValues(queue).Set(depth)
}

func SetActiveWorkers(queue string, count float64) {
	ActiveWorkers.WithLabelValues(queue).Set(count)
}

func RecordTriggerFire(triggerID string) {
	TriggerFireTotal.WithLabelValues(triggerID).Inc()
}

func RecordReconcile() {
	ReconcileTotal.Inc()
}

func RecordPauseEvent(queue string) {
	PauseEventsTotal.WithLabelValues(queue).Inc()
}

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}

func RecordWebSocketMessage(msgType string) {
	WebSocketMessages.WithLabelValues(msgType).Inc()
}
