package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/seojin/mailflow/internal/queue"
	"github.com/seojin/mailflow/internal/storage"
	"github.com/seojin/mailflow/internal/tenant"
	"github.com/seojin/mailflow/internal/webhook"
	"github.com/seojin/mailflow/internal/workflow"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	DB        *storage.DB
	Events    *storage.EventStore
	Verifier  *webhook.Verifier
	Resolver  *tenant.Resolver
	Processor *webhook.Processor
	Workflows *workflow.Service
	DLQ       queue.DeadLetterQueue
	Webhook   WebhookConfig
	Log       zerolog.Logger
}

// NewRouter creates a chi.Mux with all routes, middleware, and handlers
// configured. The DLQ is optional; when nil, the reprocess endpoint is not
// registered.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CorrelationIDMiddleware(deps.Log))
	r.Use(LoggingMiddleware(deps.Log))
	r.Use(RecoverMiddleware(deps.Log))

	// Health and metrics endpoints
	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(deps.DB))
	r.Handle("/metrics", promhttp.Handler())

	// Webhook boundary (no auth; verified by signature)
	r.Post("/webhooks/email-events", EmailEventsWebhookHandler(deps.Verifier, deps.Resolver, deps.Processor, deps.Webhook))
	r.Get("/webhooks/email-events", ListEventsHandler(deps.Events))

	// Delivery workflow control
	r.Route("/emails", func(r chi.Router) {
		r.Post("/", SubmitEmailHandler(deps.Workflows))
		r.Get("/{emailId}", GetEmailHandler(deps.Workflows))
		r.Post("/{emailId}/approve", ApproveEmailHandler(deps.Workflows))
		r.Post("/{emailId}/reject", RejectEmailHandler(deps.Workflows))
		r.Post("/{emailId}/cancel", CancelEmailHandler(deps.Workflows))
	})

	if deps.DLQ != nil {
		r.Post("/dlq/reprocess", DLQReprocessHandler(deps.DLQ))
	}

	return r
}
