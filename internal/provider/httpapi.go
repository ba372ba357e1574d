package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	httpAPISendPath   = "/emails"
	httpAPIHealthPath = "/health"
)

// HTTPAPI implements Provider for a JSON mail API (Resend-style). The
// idempotency key is forwarded in the Idempotency-Key header so the
// upstream service deduplicates re-invoked attempts.
type HTTPAPI struct {
	apiKey   string
	endpoint string
	client   HTTPClient
}

// NewHTTPAPI creates an HTTPAPI provider from the given configuration.
func NewHTTPAPI(cfg Config, client HTTPClient) *HTTPAPI {
	return &HTTPAPI{
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		client:   client,
	}
}

func (h *HTTPAPI) Name() string { return "httpapi" }

// Send delivers a message via the provider's send endpoint.
func (h *HTTPAPI) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	payload := httpAPIPayload{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.Body,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("httpapi: marshal request: %w", err)
	}

	resp, err := h.client.Do(ctx, &HTTPRequest{
		Method: "POST",
		URL:    h.endpoint + httpAPISendPath,
		Headers: map[string]string{
			"Authorization":   "Bearer " + h.apiKey,
			"Content-Type":    "application/json",
			"Idempotency-Key": msg.IdempotencyKey,
		},
		Body: body,
	})
	if err != nil {
		return nil, ClassifyTransportError(h.Name(), err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var out httpAPIResponse
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			// Accepted but unparseable body; the send still happened.
			out.ID = ""
		}
		return &SendResult{
			ProviderMessageID: out.ID,
			Status:            StatusSent,
			Timestamp:         time.Now(),
			Metadata: map[string]string{
				"status_code": fmt.Sprintf("%d", resp.StatusCode),
			},
		}, nil
	}

	return nil, ClassifyHTTPError(h.Name(), resp.StatusCode, string(resp.Body))
}

// HealthCheck verifies API connectivity.
func (h *HTTPAPI) HealthCheck(ctx context.Context) error {
	resp, err := h.client.Do(ctx, &HTTPRequest{
		Method: "GET",
		URL:    h.endpoint + httpAPIHealthPath,
		Headers: map[string]string{
			"Authorization": "Bearer " + h.apiKey,
		},
	})
	if err != nil {
		return fmt.Errorf("httpapi: health check request: %w", err)
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("httpapi: health check returned status %d", resp.StatusCode)
	}
	return nil
}

// httpAPIPayload matches the provider's send JSON schema.
type httpAPIPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type httpAPIResponse struct {
	ID string `json:"id"`
}
