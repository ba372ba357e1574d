package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Workflow metrics
var (
	WorkflowStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workflow_started_total",
			Help: "Total number of delivery workflows started",
		},
	)

	WorkflowTerminalTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_terminal_total",
			Help: "Total number of workflows by terminal state",
		},
		[]string{"state"}, // sent, failed, approval_timeout
	)

	SendAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "send_attempts_total",
			Help: "Total number of provider send attempts",
		},
		[]string{"result"}, // sent, retryable_error, permanent_error, cancelled
	)

	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "send_duration_seconds",
			Help:    "Duration of provider send attempts",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Webhook metrics
var (
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of webhook events received",
		},
		[]string{"result"}, // inserted, duplicate, rejected, error
	)

	WebhookVerifyFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_verify_failures_total",
			Help: "Total number of webhook signature verification failures",
		},
	)
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Database metrics
var (
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	DBErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"query"},
	)
)
