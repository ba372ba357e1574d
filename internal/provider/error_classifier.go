package provider

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Error wraps a provider failure with classification metadata. The workflow
// never inspects Message or StatusCode; it only consumes the Permanent flag
// through IsPermanent and IsTransient.
type Error struct {
	// Provider is the name of the transport that produced the error.
	Provider string
	// StatusCode is the HTTP status code, when the transport is HTTP.
	StatusCode int
	// Message is the error description from the provider.
	Message string
	// Permanent indicates the attempt will not succeed on retry.
	Permanent bool
}

func (e *Error) Error() string {
	return e.Provider + ": " + e.Message
}

// IsPermanent reports whether err is a classified non-retryable failure
// (invalid recipient, auth failure, rejected payload).
func IsPermanent(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Permanent
	}
	return false
}

// IsTransient reports whether err may succeed on retry. Unclassified errors
// are treated as transient so a provider outage never burns the email.
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return !pe.Permanent
	}
	return true
}

// ClassifyHTTPError builds an Error from a provider API response,
// partitioning it into permanent or transient. Returns nil for 2xx.
func ClassifyHTTPError(providerName string, statusCode int, body string) *Error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	pe := &Error{
		Provider:   providerName,
		StatusCode: statusCode,
		Message:    body,
	}

	switch {
	case statusCode == 429:
		// Throttled; the provider's own rate limiting self-paces retries.
		pe.Permanent = false

	case statusCode == 401 || statusCode == 403:
		pe.Permanent = true

	case statusCode >= 500:
		pe.Permanent = containsPermanentServerIndicator(body)

	case statusCode >= 400:
		pe.Permanent = containsPermanentIndicator(body)

	default:
		pe.Permanent = false
	}

	return pe
}

// ClassifyTransportError wraps a network-level failure (dial error, timeout,
// connection reset) as a transient provider error.
func ClassifyTransportError(providerName string, err error) *Error {
	pe := &Error{
		Provider:  providerName,
		Message:   err.Error(),
		Permanent: false,
	}

	// Context expiry and network timeouts are the canonical retryable case.
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		pe.Message = "timeout: " + err.Error()
	}

	return pe
}

// containsPermanentIndicator checks whether a 4xx body indicates a failure
// that will not change on retry.
func containsPermanentIndicator(body string) bool {
	lower := strings.ToLower(body)
	patterns := []string{
		"invalid recipient",
		"invalid email",
		"invalid address",
		"recipient rejected",
		"mailbox not found",
		"does not exist",
		"payload rejected",
		"validation error",
		"bad request",
	}
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// containsPermanentServerIndicator checks whether a 5xx body indicates a
// permanent server-side failure (misconfigured credentials, dead account).
func containsPermanentServerIndicator(body string) bool {
	lower := strings.ToLower(body)
	patterns := []string{
		"invalid api key",
		"authentication failed",
		"account suspended",
		"account disabled",
		"unauthorized",
	}
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
