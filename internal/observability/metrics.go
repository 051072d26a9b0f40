// Package observability provides Prometheus collectors and OpenTelemetry
// tracing shared by the API server and the worker.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// ModerationDecisions counts moderation outcomes by entity and result.
	ModerationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_moderation_decisions_total",
		Help: "Moderation outcomes by entity and result",
	}, []string{"entity", "result"})

	// AutoReplyDecisions counts scheduler decisions after comment creation.
	AutoReplyDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_auto_reply_decisions_total",
		Help: "Auto-reply scheduling decisions by result",
	}, []string{"result"})

	// QueueTasks counts task state transitions per queue.
	QueueTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_queue_tasks_total",
		Help: "Queued task state transitions",
	}, []string{"queue", "state"})

	// QueueWorkersActive is the number of running workers per queue.
	QueueWorkersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agora_queue_workers_active",
		Help: "Number of queue workers currently running",
	}, []string{"queue"})

	// QueueTaskDuration records handler run time per queue.
	QueueTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_queue_task_duration_seconds",
		Help:    "Time spent running a queued task",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue", "result"})

	// QueueDepth is the number of delayed tasks last observed per queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agora_queue_delayed_tasks",
		Help: "Number of tasks waiting in the delayed set",
	}, []string{"queue"})

	// CompletionRequests counts upstream completion calls by outcome.
	CompletionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_completion_requests_total",
		Help: "Completion API requests by outcome",
	}, []string{"outcome"})

	// CompletionLatency records completion round-trip latency including retries.
	CompletionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agora_completion_latency_seconds",
		Help:    "Completion API latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnections is the gauge of open event-stream connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agora_websocket_connections",
		Help: "Number of open WebSocket connections",
	})

	// WebSocketBackpressureDrops counts events dropped for slow clients.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// RecordModeration increments the moderation counter for one decision.
func RecordModeration(entity string, blocked bool) {
	result := "clean"
	if blocked {
		result = "blocked"
	}
	ModerationDecisions.WithLabelValues(entity, result).Inc()
}

const queryStartKey = "agora:query_start"

// RegisterQueryMetrics installs GORM callbacks that observe query latency
// into DatabaseQueryLatency.
func RegisterQueryMetrics(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "unknown"
			}
			DatabaseQueryLatency.WithLabelValues(op, table).Observe(time.Since(start).Seconds())
		}
	}

	cb := db.Callback()
	steps := []struct {
		op       string
		register func(string, func(*gorm.DB)) error
		after    func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
	}
	for _, s := range steps {
		if err := s.register("metrics:before_"+s.op, before); err != nil {
			return err
		}
		if err := s.after("metrics:after_"+s.op, after(s.op)); err != nil {
			return err
		}
	}
	return nil
}
