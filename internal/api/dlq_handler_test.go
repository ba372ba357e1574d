package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seojin/mailflow/internal/queue"
)

// mockDLQ implements queue.DeadLetterQueue.
type mockDLQ struct {
	reprocessFn func(ctx context.Context, taskIDs []string) (int, error)
}

func (m *mockDLQ) MoveToDLQ(context.Context, *queue.Task, string) error { return nil }

func (m *mockDLQ) Reprocess(ctx context.Context, taskIDs []string) (int, error) {
	return m.reprocessFn(ctx, taskIDs)
}

func TestDLQReprocessHandler_Success(t *testing.T) {
	var captured []string
	dlq := &mockDLQ{
		reprocessFn: func(_ context.Context, taskIDs []string) (int, error) {
			captured = taskIDs
			return len(taskIDs), nil
		},
	}

	body := `{"taskIds":["t1","t2"]}`
	req := httptest.NewRequest(http.MethodPost, "/dlq/reprocess", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	DLQReprocessHandler(dlq).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
	if len(captured) != 2 || captured[0] != "t1" {
		t.Errorf("expected task IDs forwarded, got %v", captured)
	}

	var resp map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["reprocessed"] != 2 {
		t.Errorf("expected 2 reprocessed, got %d", resp["reprocessed"])
	}
}

func TestDLQReprocessHandler_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/dlq/reprocess", strings.NewReader("not json"))
	rec := httptest.NewRecorder()

	DLQReprocessHandler(&mockDLQ{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d; body: %s", rec.Code, rec.Body.String())
	}
}

func TestDLQReprocessHandler_EmptyTaskIDs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/dlq/reprocess", strings.NewReader(`{"taskIds":[]}`))
	rec := httptest.NewRecorder()

	DLQReprocessHandler(&mockDLQ{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d; body: %s", rec.Code, rec.Body.String())
	}
}

func TestDLQReprocessHandler_ReprocessError(t *testing.T) {
	dlq := &mockDLQ{
		reprocessFn: func(context.Context, []string) (int, error) {
			return 1, context.DeadlineExceeded
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/dlq/reprocess", strings.NewReader(`{"taskIds":["t1","t2"]}`))
	rec := httptest.NewRecorder()

	DLQReprocessHandler(dlq).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}
