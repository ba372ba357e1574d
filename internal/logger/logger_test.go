package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_LevelParsing(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"info", "info", zerolog.InfoLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"invalid falls back to info", "shouty", zerolog.InfoLevel},
		{"empty falls back to info", "", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.level)
			if log.GetLevel() != tt.want {
				t.Errorf("New(%q) level = %v, want %v", tt.level, log.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewFromConfig_ServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := build(&buf, "info", "orchestrator")
	log.Info().Msg("starting")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["service"] != "orchestrator" {
		t.Errorf("expected service field, got %v", entry["service"])
	}
	if entry["message"] != "starting" {
		t.Errorf("unexpected message %v", entry["message"])
	}
}

func TestNewFromConfig_NoServiceOmitsField(t *testing.T) {
	var buf bytes.Buffer
	log := build(&buf, "info", "")
	log.Info().Msg("hi")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if _, ok := entry["service"]; ok {
		t.Error("service field should be absent when not configured")
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithLogger(context.Background(), base)
	ctx = WithCorrelationID(ctx, "corr-123")

	if got := CorrelationIDFromContext(ctx); got != "corr-123" {
		t.Fatalf("CorrelationIDFromContext = %q, want corr-123", got)
	}

	log := FromContext(ctx)
	log.Info().Msg("traced")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["correlation_id"] != "corr-123" {
		t.Errorf("expected correlation_id on entry, got %v", entry["correlation_id"])
	}
}

func TestFromContext_Defaults(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("default logger level = %v, want info", log.GetLevel())
	}
}

func TestCorrelationIDFromContext_Empty(t *testing.T) {
	if got := CorrelationIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty correlation ID, got %q", got)
	}
}

func TestNewCorrelationID_Unique(t *testing.T) {
	a, b := NewCorrelationID(), NewCorrelationID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a, b)
	}
}
