package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task queue metrics for Prometheus monitoring.
var (
	TasksEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_tasks_enqueued_total",
			Help: "Total number of orchestration tasks enqueued",
		},
	)

	TasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_tasks_processed_total",
			Help: "Total number of tasks processed by status",
		},
		[]string{"status"}, // handled, failed, dlq
	)

	TaskProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_task_processing_duration_seconds",
			Help:    "Duration of task handoff operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	DLQTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_dlq_tasks_total",
			Help: "Total number of tasks moved to DLQ by reason",
		},
		[]string{"reason"},
	)
)
