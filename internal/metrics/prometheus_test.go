package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistered(t *testing.T) {
	// promauto registers with the default registry at init; this test
	// verifies the package initializes without duplicate registration.

	tests := []struct {
		name   string
		metric prometheus.Collector
	}{
		{"WorkflowStartedTotal", WorkflowStartedTotal},
		{"WorkflowTerminalTotal", WorkflowTerminalTotal},
		{"SendAttemptsTotal", SendAttemptsTotal},
		{"SendDuration", SendDuration},
		{"WebhookEventsTotal", WebhookEventsTotal},
		{"WebhookVerifyFailuresTotal", WebhookVerifyFailuresTotal},
		{"APIRequestsTotal", APIRequestsTotal},
		{"APIRequestDuration", APIRequestDuration},
		{"DBConnectionsActive", DBConnectionsActive},
		{"DBConnectionsIdle", DBConnectionsIdle},
		{"DBErrorsTotal", DBErrorsTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s is nil", tt.name)
			}
		})
	}
}

func TestWorkflowCounters(t *testing.T) {
	WorkflowStartedTotal.Inc()
	WorkflowTerminalTotal.WithLabelValues("sent").Inc()
	WorkflowTerminalTotal.WithLabelValues("failed").Inc()
	WorkflowTerminalTotal.WithLabelValues("approval_timeout").Inc()
}

func TestSendAttemptMetrics(t *testing.T) {
	SendAttemptsTotal.WithLabelValues("sent").Inc()
	SendAttemptsTotal.WithLabelValues("retryable_error").Inc()
	SendDuration.Observe(0.120)
}

func TestWebhookCounters(t *testing.T) {
	WebhookEventsTotal.WithLabelValues("inserted").Inc()
	WebhookEventsTotal.WithLabelValues("duplicate").Inc()
	WebhookVerifyFailuresTotal.Inc()
}

func TestAPIMetrics(t *testing.T) {
	APIRequestsTotal.WithLabelValues("POST", "/webhooks/email-events", "200").Inc()
	APIRequestDuration.WithLabelValues("GET", "/webhooks/email-events").Observe(0.05)
}
