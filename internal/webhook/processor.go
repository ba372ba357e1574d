package webhook

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seojin/mailflow/internal/delivery"
)

// EventSink persists delivery events with insert-or-ignore semantics.
type EventSink interface {
	// InsertEvent appends the event and reports whether a new row was
	// written. A uniqueness conflict returns (false, nil): duplicate
	// webhook deliveries are not errors.
	InsertEvent(ctx context.Context, evt *delivery.Event) (bool, error)
	// MarkEventProcessed flags the event after its side effect has run.
	MarkEventProcessed(ctx context.Context, id uuid.UUID) error
}

// SuppressionStore records recipients that must not be contacted again.
// SuppressRecipient is idempotent.
type SuppressionStore interface {
	SuppressRecipient(ctx context.Context, tenantID, recipient, reason string) error
}

// Outcome reports what ingestion did with an event.
type Outcome struct {
	// Inserted is false when the event was a duplicate; duplicates are
	// accepted but write nothing and run no side effects.
	Inserted bool
}

// Processor persists delivery events and runs the event-specific side
// effect appropriate to each type. The uniqueness constraint on the event
// store is the concurrency control: concurrent duplicate deliveries race
// on the insert and exactly one wins.
type Processor struct {
	events       EventSink
	suppressions SuppressionStore
	log          zerolog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(events EventSink, suppressions SuppressionStore, log zerolog.Logger) *Processor {
	return &Processor{
		events:       events,
		suppressions: suppressions,
		log:          log,
	}
}

// Ingest appends the event, and when it is new, runs its side effect and
// marks it processed. Recipients are the payload's To addresses, used by
// suppression side effects.
func (p *Processor) Ingest(ctx context.Context, evt *delivery.Event, recipients []string) (Outcome, error) {
	inserted, err := p.events.InsertEvent(ctx, evt)
	if err != nil {
		return Outcome{}, fmt.Errorf("insert delivery event: %w", err)
	}
	if !inserted {
		p.log.Debug().
			Str("email_id", evt.EmailID).
			Str("event_type", string(evt.Type)).
			Str("webhook_id", evt.WebhookID).
			Msg("duplicate delivery event ignored")
		return Outcome{Inserted: false}, nil
	}

	if err := p.runSideEffect(ctx, evt, recipients); err != nil {
		// The event row is already durable; a failed side effect leaves
		// Processed unset so it can be re-driven.
		p.log.Error().Err(err).
			Str("email_id", evt.EmailID).
			Str("event_type", string(evt.Type)).
			Msg("event side effect failed")
		return Outcome{Inserted: true}, nil
	}

	if err := p.events.MarkEventProcessed(ctx, evt.ID); err != nil {
		p.log.Error().Err(err).
			Stringer("event_id", evt.ID).
			Msg("failed to mark event processed")
	}

	return Outcome{Inserted: true}, nil
}

// runSideEffect dispatches the event-specific side effect. Every side
// effect is idempotent, so re-running after a crash is safe.
func (p *Processor) runSideEffect(ctx context.Context, evt *delivery.Event, recipients []string) error {
	switch evt.Type {
	case delivery.EventBounced:
		return p.suppressAll(ctx, evt.TenantID, recipients, "bounced")
	case delivery.EventComplained:
		return p.suppressAll(ctx, evt.TenantID, recipients, "complained")
	default:
		return nil
	}
}

func (p *Processor) suppressAll(ctx context.Context, tenantID string, recipients []string, reason string) error {
	for _, rcpt := range recipients {
		if rcpt == "" {
			continue
		}
		if err := p.suppressions.SuppressRecipient(ctx, tenantID, rcpt, reason); err != nil {
			return fmt.Errorf("suppress %s: %w", rcpt, err)
		}
		p.log.Info().
			Str("tenant_id", tenantID).
			Str("recipient", rcpt).
			Str("reason", reason).
			Msg("recipient suppressed")
	}
	return nil
}
