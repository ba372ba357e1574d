// Package tenant attributes inbound webhook events to a tenant. Resolution
// is a pure function over the payload and headers: no network, no storage,
// total (it always produces a tenant) and deterministic.
package tenant

import (
	"net/http"

	"github.com/seojin/mailflow/internal/webhook"
)

// TagName is the provider tag that round-trips the tenant identifier set
// at send time. It is the most trusted attribution signal.
const TagName = "tenant_id"

// Strategy extracts a tenant ID from an inbound webhook, returning false
// when its signal is absent. Strategies must be pure functions.
type Strategy func(p *webhook.Payload, headers http.Header) (string, bool)

// Resolver tries an ordered list of strategies; the first match wins.
type Resolver struct {
	strategies []Strategy
}

// NewResolver builds the production fallback chain, ordered by trust:
//
//  1. the tenant_id tag embedded in the provider payload (round-tripped
//     from send time, most reliable)
//  2. the configured tenant header (attacker-controllable on an
//     unauthenticated endpoint, second)
//  3. a fixed fallback sentinel so resolution never fails, at the cost of
//     potentially misattributing events from misconfigured senders
func NewResolver(tenantHeader, fallbackTenant string) *Resolver {
	return &Resolver{
		strategies: []Strategy{
			FromPayloadTag(TagName),
			FromHeader(tenantHeader),
			Fallback(fallbackTenant),
		},
	}
}

// NewResolverWithStrategies builds a Resolver from an explicit chain.
func NewResolverWithStrategies(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// Resolve returns the tenant ID for the given webhook. The production
// chain ends in a fallback, so it always produces a value there; an
// explicitly constructed chain without a fallback returns "".
func (r *Resolver) Resolve(p *webhook.Payload, headers http.Header) string {
	for _, s := range r.strategies {
		if id, ok := s(p, headers); ok {
			return id
		}
	}
	return ""
}

// FromPayloadTag matches a named tag in the payload's tagging mechanism.
func FromPayloadTag(name string) Strategy {
	return func(p *webhook.Payload, _ http.Header) (string, bool) {
		if p == nil {
			return "", false
		}
		v, ok := p.Data.TagValue(name)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}
}

// FromHeader matches a custom header carrying the tenant identifier.
func FromHeader(header string) Strategy {
	return func(_ *webhook.Payload, headers http.Header) (string, bool) {
		if header == "" || headers == nil {
			return "", false
		}
		v := headers.Get(header)
		if v == "" {
			return "", false
		}
		return v, true
	}
}

// Fallback always matches with the given sentinel tenant.
func Fallback(tenantID string) Strategy {
	return func(_ *webhook.Payload, _ http.Header) (string, bool) {
		return tenantID, true
	}
}
