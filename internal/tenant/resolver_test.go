package tenant

import (
	"net/http"
	"testing"

	"github.com/seojin/mailflow/internal/webhook"
)

func payloadWithTag(name, value string) *webhook.Payload {
	return &webhook.Payload{
		Type: "email.delivered",
		Data: webhook.PayloadData{
			EmailID: "em-1",
			Tags:    []webhook.Tag{{Name: name, Value: value}},
		},
	}
}

func TestResolve_FallbackChain(t *testing.T) {
	r := NewResolver("X-Tenant-Id", "default")

	tests := []struct {
		name    string
		payload *webhook.Payload
		headers http.Header
		want    string
	}{
		{
			name:    "payload tag wins",
			payload: payloadWithTag(TagName, "tenant-from-tag"),
			headers: http.Header{"X-Tenant-Id": []string{"tenant-from-header"}},
			want:    "tenant-from-tag",
		},
		{
			name:    "header when tag absent",
			payload: payloadWithTag("campaign", "q3"),
			headers: http.Header{"X-Tenant-Id": []string{"tenant-from-header"}},
			want:    "tenant-from-header",
		},
		{
			name:    "fallback when neither present",
			payload: &webhook.Payload{Data: webhook.PayloadData{EmailID: "em-2"}},
			headers: http.Header{},
			want:    "default",
		},
		{
			name:    "empty tag value falls through",
			payload: payloadWithTag(TagName, ""),
			headers: http.Header{},
			want:    "default",
		},
		{
			name:    "nil payload and headers still resolve",
			payload: nil,
			headers: nil,
			want:    "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(tt.payload, tt.headers); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := NewResolver("X-Tenant-Id", "default")
	p := payloadWithTag(TagName, "tenant-a")
	h := http.Header{"X-Tenant-Id": []string{"tenant-b"}}

	first := r.Resolve(p, h)
	for i := 0; i < 10; i++ {
		if got := r.Resolve(p, h); got != first {
			t.Fatalf("resolution not deterministic: %q then %q", first, got)
		}
	}
}

func TestResolve_CustomChainWithoutFallback(t *testing.T) {
	r := NewResolverWithStrategies(FromPayloadTag(TagName))

	if got := r.Resolve(payloadWithTag(TagName, "tenant-a"), nil); got != "tenant-a" {
		t.Errorf("expected tenant-a, got %q", got)
	}
	if got := r.Resolve(nil, nil); got != "" {
		t.Errorf("chain without fallback must return empty, got %q", got)
	}
}

func TestFromHeader_EmptyHeaderName(t *testing.T) {
	s := FromHeader("")
	if _, ok := s(nil, http.Header{"X-Tenant-Id": []string{"x"}}); ok {
		t.Error("strategy with empty header name must never match")
	}
}
