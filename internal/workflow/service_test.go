package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/seojin/mailflow/internal/queue"
)

// memEnqueuer records enqueued tasks.
type memEnqueuer struct {
	mu    sync.Mutex
	tasks []*queue.Task
	err   error
}

func (m *memEnqueuer) Enqueue(_ context.Context, task *queue.Task) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
	return task.ID, nil
}

func (m *memEnqueuer) last() *queue.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tasks) == 0 {
		return nil
	}
	return m.tasks[len(m.tasks)-1]
}

func TestServiceStart_PersistsAndEnqueues(t *testing.T) {
	store := newMemInstanceStore()
	enq := &memEnqueuer{}
	svc := NewService(store, enq, zerolog.Nop())

	inst, err := svc.Start(context.Background(), newRequest("em-1"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if inst.State != StatePending {
		t.Errorf("expected pending instance, got %s", inst.State)
	}

	stored, err := store.GetInstance(context.Background(), "em-1")
	if err != nil {
		t.Fatalf("instance not persisted: %v", err)
	}
	if stored.TenantID != "tenant-a" {
		t.Errorf("unexpected tenant: %s", stored.TenantID)
	}

	task := enq.last()
	if task == nil || task.Kind != queue.TaskStartWorkflow || task.EmailID != "em-1" {
		t.Errorf("expected start task for em-1, got %+v", task)
	}
}

func TestServiceStart_DuplicateEmailID(t *testing.T) {
	store := newMemInstanceStore()
	enq := &memEnqueuer{}
	svc := NewService(store, enq, zerolog.Nop())

	if _, err := svc.Start(context.Background(), newRequest("em-2")); err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err := svc.Start(context.Background(), newRequest("em-2"))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	// Only the first submission may enqueue a task.
	if len(enq.tasks) != 1 {
		t.Errorf("expected 1 enqueued task, got %d", len(enq.tasks))
	}
}

func TestServiceStart_InvalidRequest(t *testing.T) {
	svc := NewService(newMemInstanceStore(), &memEnqueuer{}, zerolog.Nop())

	req := newRequest("em-3")
	req.To = nil
	if _, err := svc.Start(context.Background(), req); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestServiceSignals_EnqueueForLiveInstance(t *testing.T) {
	store := newMemInstanceStore()
	enq := &memEnqueuer{}
	svc := NewService(store, enq, zerolog.Nop())

	if _, err := svc.Start(context.Background(), newRequest("em-4")); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.Approve(context.Background(), "em-4"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	task := enq.last()
	if task.Kind != queue.TaskSignal || task.Signal != "approve" {
		t.Errorf("expected approve signal task, got %+v", task)
	}

	if err := svc.Reject(context.Background(), "em-4", "bad copy"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	task = enq.last()
	if task.Signal != "reject" || task.Reason != "bad copy" {
		t.Errorf("expected reject task with reason, got %+v", task)
	}

	if err := svc.Cancel(context.Background(), "em-4", ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if task = enq.last(); task.Signal != "cancel" {
		t.Errorf("expected cancel task, got %+v", task)
	}
}

func TestServiceSignals_UnknownInstance(t *testing.T) {
	svc := NewService(newMemInstanceStore(), &memEnqueuer{}, zerolog.Nop())

	err := svc.Approve(context.Background(), "missing")
	if !errors.Is(err, ErrInstanceNotFound) {
		t.Fatalf("expected ErrInstanceNotFound, got %v", err)
	}
}

func TestServiceSignals_TerminalInstance(t *testing.T) {
	store := newMemInstanceStore()
	svc := NewService(store, &memEnqueuer{}, zerolog.Nop())

	inst := NewInstance(newRequest("em-5"))
	inst.State = StateSent
	if err := store.SaveInstance(context.Background(), inst); err != nil {
		t.Fatal(err)
	}

	err := svc.Cancel(context.Background(), "em-5", "too late")
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}
