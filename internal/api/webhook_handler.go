package api

import (
	"io"
	"net/http"

	"github.com/seojin/mailflow/internal/delivery"
	"github.com/seojin/mailflow/internal/logger"
	"github.com/seojin/mailflow/internal/metrics"
	"github.com/seojin/mailflow/internal/tenant"
	"github.com/seojin/mailflow/internal/webhook"
)

// Header defaults for the webhook boundary. Overridable via config.
const (
	DefaultSignatureHeader = "Webhook-Signature"
	DefaultWebhookIDHeader = "Webhook-Id"
)

// maxWebhookBody caps the request body read to keep a misbehaving provider
// from exhausting memory.
const maxWebhookBody = 1 << 20

// WebhookConfig carries the header names the webhook handler reads.
type WebhookConfig struct {
	SignatureHeader string
	WebhookIDHeader string
}

func (c WebhookConfig) withDefaults() WebhookConfig {
	if c.SignatureHeader == "" {
		c.SignatureHeader = DefaultSignatureHeader
	}
	if c.WebhookIDHeader == "" {
		c.WebhookIDHeader = DefaultWebhookIDHeader
	}
	return c
}

// EmailEventsWebhookHandler handles POST /webhooks/email-events: the
// provider's delivery event callback. The raw body is verified before any
// parsing; duplicates are accepted with 200 and ignored.
func EmailEventsWebhookHandler(
	verifier *webhook.Verifier,
	resolver *tenant.Resolver,
	processor *webhook.Processor,
	cfg WebhookConfig,
) http.HandlerFunc {
	cfg = cfg.withDefaults()
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			respondError(w, http.StatusBadRequest, "failed to read request body")
			return
		}

		if err := verifier.Verify(body, r.Header.Get(cfg.SignatureHeader)); err != nil {
			metrics.WebhookVerifyFailuresTotal.Inc()
			log.Warn().Msg("webhook signature verification failed")
			respondError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		payload, err := webhook.ParsePayload(body)
		if err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
			log.Warn().Err(err).Msg("webhook payload rejected")
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		eventType, err := delivery.ParseProviderEventType(payload.Type)
		if err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
			log.Warn().Str("type", payload.Type).Msg("webhook event type rejected")
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		tenantID := resolver.Resolve(payload, r.Header)

		evt := delivery.NewEvent(tenantID, payload.Data.EmailID, eventType, payload.CreatedAt)
		evt.WebhookID = r.Header.Get(cfg.WebhookIDHeader)
		evt.Metadata = map[string]string{}
		if payload.Data.From != "" {
			evt.Metadata["from"] = payload.Data.From
		}
		if payload.Data.Subject != "" {
			evt.Metadata["subject"] = payload.Data.Subject
		}

		outcome, err := processor.Ingest(r.Context(), evt, payload.Data.To)
		if err != nil {
			metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
			log.Error().Err(err).
				Str("email_id", evt.EmailID).
				Str("event_type", string(eventType)).
				Msg("webhook event ingestion failed")
			respondError(w, http.StatusInternalServerError, "failed to store event")
			return
		}

		resp := map[string]string{
			"message":   "event recorded",
			"eventId":   evt.ID.String(),
			"eventType": string(eventType),
		}
		if !outcome.Inserted {
			// The generated ID was never written; don't echo it.
			resp = map[string]string{
				"message":   "duplicate event ignored",
				"eventType": string(eventType),
			}
			metrics.WebhookEventsTotal.WithLabelValues("duplicate").Inc()
		} else {
			metrics.WebhookEventsTotal.WithLabelValues("inserted").Inc()
		}

		log.Info().
			Str("tenant_id", tenantID).
			Str("email_id", evt.EmailID).
			Str("event_type", string(eventType)).
			Bool("inserted", outcome.Inserted).
			Msg("webhook event processed")

		respondJSON(w, http.StatusOK, resp)
	}
}
