// Package delivery defines the shared data model for the email delivery
// orchestrator: the immutable send request that starts a workflow, the
// delivery event log entry, and the event type vocabulary shared by the
// workflow and the webhook ingestion boundary.
package delivery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidRequest marks send request validation failures so callers can
// map them to a 400 instead of a 500.
var ErrInvalidRequest = errors.New("invalid send request")

// SendRequest is the immutable input to a delivery workflow instance.
// It is created once by the caller and never mutated; the workflow
// instance owns it exclusively for its lifetime.
type SendRequest struct {
	// EmailID is caller-assigned and globally unique. It keys the workflow
	// instance, the event log, and the provider idempotency key.
	EmailID  string   `json:"email_id"`
	TenantID string   `json:"tenant_id"`
	From     string   `json:"from"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`

	// ScheduledAt, when set, delays the send until the given time.
	// Nil means send immediately.
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	// RequiresApproval gates the send behind an external approval signal.
	RequiresApproval bool   `json:"requires_approval,omitempty"`
	ReviewerID       string `json:"reviewer_id,omitempty"`

	// Overrides replaces selected retry-policy defaults for this email.
	Overrides *PolicyOverrides `json:"overrides,omitempty"`
}

// PolicyOverrides carries per-request overrides of the workflow policy
// defaults. Zero values leave the default in place.
type PolicyOverrides struct {
	MaxAttempts     int           `json:"max_attempts,omitempty"`
	RetryInterval   time.Duration `json:"retry_interval,omitempty"`
	ActivityTimeout time.Duration `json:"activity_timeout,omitempty"`
	ApprovalTimeout time.Duration `json:"approval_timeout,omitempty"`
}

// Validate checks the request fields that every workflow depends on.
func (r *SendRequest) Validate() error {
	if r.EmailID == "" {
		return fmt.Errorf("%w: email_id is required", ErrInvalidRequest)
	}
	if r.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidRequest)
	}
	if r.From == "" {
		return fmt.Errorf("%w: from is required", ErrInvalidRequest)
	}
	if len(r.To) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidRequest)
	}
	return nil
}

// EventType identifies a delivery event. The set is fixed; unknown types
// are rejected at the ingestion boundary rather than stored.
type EventType string

const (
	EventSent            EventType = "sent"
	EventDelivered       EventType = "delivered"
	EventBounced         EventType = "bounced"
	EventFailed          EventType = "failed"
	EventOpened          EventType = "opened"
	EventClicked         EventType = "clicked"
	EventComplained      EventType = "complained"
	EventDeliveryDelayed EventType = "delivery_delayed"
	EventScheduled       EventType = "scheduled"

	// EventApprovalTimeout is orchestrator-originated only; providers
	// never report it.
	EventApprovalTimeout EventType = "approval_timeout"
)

var knownEventTypes = map[EventType]bool{
	EventSent:            true,
	EventDelivered:       true,
	EventBounced:         true,
	EventFailed:          true,
	EventOpened:          true,
	EventClicked:         true,
	EventComplained:      true,
	EventDeliveryDelayed: true,
	EventScheduled:       true,
	EventApprovalTimeout: true,
}

// ParseEventType normalizes a provider event type string and validates it
// against the known set. Provider payloads prefix types with "email."
// (e.g. "email.bounced"); the prefix is stripped before matching.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.TrimPrefix(strings.TrimSpace(s), "email."))
	if t == "" {
		return "", fmt.Errorf("event type is empty")
	}
	if !knownEventTypes[t] {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return t, nil
}

// ParseProviderEventType restricts ParseEventType to the types providers
// actually report. Orchestrator-originated types (approval_timeout) are
// rejected at the webhook boundary.
func ParseProviderEventType(s string) (EventType, error) {
	t, err := ParseEventType(s)
	if err != nil {
		return "", err
	}
	if t == EventApprovalTimeout {
		return "", fmt.Errorf("event type %q is not provider-reported", s)
	}
	return t, nil
}

// Event is a single delivery fact, reported by the provider through the
// webhook boundary or recorded by the orchestrator on terminal completion.
// Events are append-only and never updated, except for the Processed flag
// set after the event-specific side effect has run.
type Event struct {
	ID       uuid.UUID `json:"id"`
	TenantID string    `json:"tenant_id"`
	EmailID  string    `json:"email_id"`
	Type     EventType `json:"event_type"`

	// OccurredAt is the timestamp reported by the source, not the arrival
	// time. Events may arrive out of order; readers sort by this field.
	OccurredAt time.Time `json:"occurred_at"`

	// WebhookID is the provider's delivery identifier when the event came
	// in through the webhook boundary. It is empty for orchestrator-
	// originated events. Uniqueness is enforced on
	// (tenant_id, email_id, event_type, webhook_id) when present, and on
	// (tenant_id, email_id, event_type, occurred_at) otherwise.
	WebhookID string `json:"webhook_id,omitempty"`

	Metadata  map[string]string `json:"metadata,omitempty"`
	Processed bool              `json:"processed"`
}

// NewEvent builds an Event with a fresh ID.
func NewEvent(tenantID, emailID string, t EventType, occurredAt time.Time) *Event {
	return &Event{
		ID:         uuid.New(),
		TenantID:   tenantID,
		EmailID:    emailID,
		Type:       t,
		OccurredAt: occurredAt,
	}
}
