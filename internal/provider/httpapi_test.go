package provider

import (
	"context"
	"encoding/json"
	"testing"
)

// fakeHTTPClient records the last request and returns a canned response.
type fakeHTTPClient struct {
	lastReq *HTTPRequest
	resp    *HTTPResponse
	err     error
}

func (f *fakeHTTPClient) Do(_ context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testMessage() *Message {
	return &Message{
		EmailID:        "e1",
		TenantID:       "t1",
		From:           "sender@example.com",
		To:             []string{"rcpt@example.com"},
		Subject:        "hello",
		Body:           "<p>hi</p>",
		IdempotencyKey: IdempotencyKey("e1"),
	}
}

func TestHTTPAPISendSuccess(t *testing.T) {
	client := &fakeHTTPClient{
		resp: &HTTPResponse{
			StatusCode: 200,
			Body:       []byte(`{"id":"prov-123"}`),
		},
	}
	p := NewHTTPAPI(Config{APIKey: "key", Endpoint: "https://mail.example.com"}, client)

	result, err := p.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if result.ProviderMessageID != "prov-123" {
		t.Errorf("ProviderMessageID = %q, want prov-123", result.ProviderMessageID)
	}
	if result.Status != StatusSent {
		t.Errorf("Status = %q, want %q", result.Status, StatusSent)
	}

	if client.lastReq.URL != "https://mail.example.com/emails" {
		t.Errorf("request URL = %q", client.lastReq.URL)
	}
	if got := client.lastReq.Headers["Idempotency-Key"]; got != "mailflow-e1" {
		t.Errorf("Idempotency-Key header = %q, want mailflow-e1", got)
	}
	if got := client.lastReq.Headers["Authorization"]; got != "Bearer key" {
		t.Errorf("Authorization header = %q", got)
	}

	var payload map[string]any
	if err := json.Unmarshal(client.lastReq.Body, &payload); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if payload["from"] != "sender@example.com" {
		t.Errorf("payload from = %v", payload["from"])
	}
}

func TestHTTPAPISendErrors(t *testing.T) {
	tests := []struct {
		name     string
		resp     *HTTPResponse
		wantPerm bool
	}{
		{
			name:     "422 invalid recipient is permanent",
			resp:     &HTTPResponse{StatusCode: 422, Body: []byte("invalid recipient")},
			wantPerm: true,
		},
		{
			name:     "429 is transient",
			resp:     &HTTPResponse{StatusCode: 429, Body: []byte("rate limited")},
			wantPerm: false,
		},
		{
			name:     "503 is transient",
			resp:     &HTTPResponse{StatusCode: 503, Body: []byte("maintenance")},
			wantPerm: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeHTTPClient{resp: tt.resp}
			p := NewHTTPAPI(Config{APIKey: "key", Endpoint: "https://mail.example.com"}, client)

			_, err := p.Send(context.Background(), testMessage())
			if err == nil {
				t.Fatal("Send() error = nil, want classified error")
			}
			if IsPermanent(err) != tt.wantPerm {
				t.Errorf("IsPermanent = %v, want %v (err=%v)", IsPermanent(err), tt.wantPerm, err)
			}
		})
	}
}

func TestHTTPAPISendTransportError(t *testing.T) {
	client := &fakeHTTPClient{err: context.DeadlineExceeded}
	p := NewHTTPAPI(Config{APIKey: "key", Endpoint: "https://mail.example.com"}, client)

	_, err := p.Send(context.Background(), testMessage())
	if err == nil {
		t.Fatal("Send() error = nil, want transport error")
	}
	if !IsTransient(err) {
		t.Errorf("transport error not classified transient: %v", err)
	}
}

func TestProviderConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"httpapi complete", Config{Type: "httpapi", APIKey: "k", Endpoint: "https://x"}, false},
		{"httpapi missing key", Config{Type: "httpapi", Endpoint: "https://x"}, true},
		{"smtp complete", Config{Type: "smtp", Endpoint: "relay:587"}, false},
		{"smtp missing endpoint", Config{Type: "smtp"}, true},
		{"stdout", Config{Type: "stdout"}, false},
		{"empty type", Config{}, true},
		{"unknown type", Config{Type: "pigeon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
