package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/seojin/mailflow/internal/delivery"
	"github.com/seojin/mailflow/internal/tenant"
	"github.com/seojin/mailflow/internal/webhook"
)

// mockEventSink implements webhook.EventSink with pluggable behavior.
type mockEventSink struct {
	insertFn func(ctx context.Context, evt *delivery.Event) (bool, error)
	markFn   func(ctx context.Context, id uuid.UUID) error
	inserted []*delivery.Event
}

func (m *mockEventSink) InsertEvent(ctx context.Context, evt *delivery.Event) (bool, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, evt)
	}
	m.inserted = append(m.inserted, evt)
	return true, nil
}

func (m *mockEventSink) MarkEventProcessed(ctx context.Context, id uuid.UUID) error {
	if m.markFn != nil {
		return m.markFn(ctx, id)
	}
	return nil
}

// mockSuppressions implements webhook.SuppressionStore.
type mockSuppressions struct {
	calls []string
}

func (m *mockSuppressions) SuppressRecipient(_ context.Context, tenantID, recipient, reason string) error {
	m.calls = append(m.calls, tenantID+"/"+recipient+"/"+reason)
	return nil
}

const testSecret = "wh-secret"

func newWebhookHandler(sink *mockEventSink, sup *mockSuppressions) http.HandlerFunc {
	verifier := webhook.NewVerifier([]string{testSecret})
	resolver := tenant.NewResolver("X-Tenant-Id", "default")
	processor := webhook.NewProcessor(sink, sup, zerolog.Nop())
	return EmailEventsWebhookHandler(verifier, resolver, processor, WebhookConfig{})
}

func signedRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email-events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DefaultSignatureHeader, webhook.Sign([]byte(body), testSecret))
	return req
}

func TestEmailEventsWebhookHandler_ValidEvent(t *testing.T) {
	sink := &mockEventSink{}
	sup := &mockSuppressions{}
	handler := newWebhookHandler(sink, sup)

	body := `{
		"type": "email.delivered",
		"created_at": "2026-08-27T10:00:00Z",
		"data": {
			"email_id": "em-1",
			"to": ["user@example.com"],
			"tags": [{"name": "tenant_id", "value": "tenant-a"}]
		}
	}`
	req := signedRequest(t, body)
	req.Header.Set(DefaultWebhookIDHeader, "wh-123")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
	if len(sink.inserted) != 1 {
		t.Fatalf("expected 1 inserted event, got %d", len(sink.inserted))
	}
	evt := sink.inserted[0]
	if evt.TenantID != "tenant-a" {
		t.Errorf("expected tenant from payload tag, got %s", evt.TenantID)
	}
	if evt.Type != delivery.EventDelivered {
		t.Errorf("expected delivered, got %s", evt.Type)
	}
	if evt.WebhookID != "wh-123" {
		t.Errorf("expected webhook ID from header, got %q", evt.WebhookID)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message"] != "event recorded" {
		t.Errorf("unexpected message %q", resp["message"])
	}
}

func TestEmailEventsWebhookHandler_DuplicateReturns200(t *testing.T) {
	sink := &mockEventSink{
		insertFn: func(context.Context, *delivery.Event) (bool, error) { return false, nil },
	}
	handler := newWebhookHandler(sink, &mockSuppressions{})

	body := `{"type": "email.sent", "data": {"email_id": "em-2"}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected duplicate to be accepted with 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["message"] != "duplicate event ignored" {
		t.Errorf("unexpected message %q", resp["message"])
	}
	if id, ok := resp["eventId"]; ok {
		t.Errorf("duplicate must not echo an event ID that was never stored, got %q", id)
	}
}

func TestEmailEventsWebhookHandler_BadSignature(t *testing.T) {
	sink := &mockEventSink{}
	handler := newWebhookHandler(sink, &mockSuppressions{})

	body := `{"type": "email.sent", "data": {"email_id": "em-3"}}`
	tests := []struct {
		name string
		set  func(r *http.Request)
	}{
		{"missing header", func(r *http.Request) { r.Header.Del(DefaultSignatureHeader) }},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set(DefaultSignatureHeader, webhook.Sign([]byte(body), "not-the-secret"))
		}},
		{"tampered body", func(r *http.Request) {
			r.Header.Set(DefaultSignatureHeader, webhook.Sign([]byte(`{}`), testSecret))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := signedRequest(t, body)
			tt.set(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
	if len(sink.inserted) != 0 {
		t.Errorf("unverified requests must not store events, got %d", len(sink.inserted))
	}
}

func TestEmailEventsWebhookHandler_MalformedPayload(t *testing.T) {
	handler := newWebhookHandler(&mockEventSink{}, &mockSuppressions{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing type", `{"data": {"email_id": "em-4"}}`},
		{"missing email id", `{"type": "email.sent", "data": {}}`},
		{"unknown event type", `{"type": "email.exploded", "data": {"email_id": "em-5"}}`},
		{"orchestrator-only event type", `{"type": "email.approval_timeout", "data": {"email_id": "em-5"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, signedRequest(t, tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d; body: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestEmailEventsWebhookHandler_TenantFallsBackToHeader(t *testing.T) {
	sink := &mockEventSink{}
	handler := newWebhookHandler(sink, &mockSuppressions{})

	body := `{"type": "email.opened", "data": {"email_id": "em-6"}}`
	req := signedRequest(t, body)
	req.Header.Set("X-Tenant-Id", "tenant-b")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if sink.inserted[0].TenantID != "tenant-b" {
		t.Errorf("expected tenant from header, got %s", sink.inserted[0].TenantID)
	}
}

func TestEmailEventsWebhookHandler_BounceTriggersSuppression(t *testing.T) {
	sink := &mockEventSink{}
	sup := &mockSuppressions{}
	handler := newWebhookHandler(sink, sup)

	body := `{"type": "email.bounced", "data": {"email_id": "em-7", "to": ["dead@example.com"]}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sup.calls) != 1 || sup.calls[0] != "default/dead@example.com/bounced" {
		t.Errorf("expected bounce suppression, got %v", sup.calls)
	}
}

func TestEmailEventsWebhookHandler_StoreErrorReturns500(t *testing.T) {
	sink := &mockEventSink{
		insertFn: func(context.Context, *delivery.Event) (bool, error) {
			return false, context.DeadlineExceeded
		},
	}
	handler := newWebhookHandler(sink, &mockSuppressions{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, `{"type": "email.sent", "data": {"email_id": "em-8"}}`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
