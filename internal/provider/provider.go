// Package provider models the outbound email transport as an opaque
// capability. The orchestrator only ever sees the Provider interface and
// the permanent/transient error classification; provider-specific error
// parsing never leaks into the workflow.
package provider

import (
	"context"
	"time"
)

// Provider performs one delivery attempt against an external email service.
type Provider interface {
	// Send hands the message to the provider and returns a delivery
	// result. Implementations must be safe to invoke more than once for
	// the same message: the orchestrator's retry loop can re-invoke after
	// a timeout even if the prior attempt succeeded out-of-band, so the
	// message's idempotency key is forwarded upstream.
	Send(ctx context.Context, msg *Message) (*SendResult, error)
	// Name returns the provider's identifier (e.g. "httpapi", "smtp").
	Name() string
	// HealthCheck verifies the provider is reachable and functional.
	HealthCheck(ctx context.Context) error
}

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// HTTPRequest represents an outgoing HTTP request to a provider API.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// HTTPResponse represents an HTTP response from a provider API.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Message is one email handed to a provider for a single attempt.
type Message struct {
	// EmailID is the logical email identifier assigned by the caller.
	EmailID  string
	TenantID string
	From     string
	To       []string
	Subject  string
	Body     string

	// IdempotencyKey is derived from EmailID and sent upstream so the
	// provider can deduplicate repeated attempts for the same email.
	IdempotencyKey string
}

// SendResult is the outcome of one successful delivery attempt.
type SendResult struct {
	ProviderMessageID string
	Status            Status
	Timestamp         time.Time
	Metadata          map[string]string
}

// Status represents the outcome of a provider hand-off.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// IdempotencyKey derives the upstream deduplication key for an email.
func IdempotencyKey(emailID string) string {
	return "mailflow-" + emailID
}
