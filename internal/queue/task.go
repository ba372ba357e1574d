package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stream keys for the Redis backend.
const (
	taskStream    = "mailflow:tasks"
	taskDLQStream = "mailflow:tasks:dlq"
)

// TaskKind discriminates orchestration tasks on the wire.
type TaskKind string

const (
	TaskStartWorkflow TaskKind = "start_workflow"
	TaskSignal        TaskKind = "signal"
)

// Task is the unit of work handed from the API layer to the orchestrator.
// Start tasks launch the workflow for an already-persisted instance; signal
// tasks carry an approval decision or cancellation to a running one.
type Task struct {
	ID         string    `json:"id"`
	Kind       TaskKind  `json:"kind"`
	EmailID    string    `json:"email_id"`
	Signal     string    `json:"signal,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	RetryCount int       `json:"retry_count"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewStartTask creates a task that launches the workflow for an email.
func NewStartTask(emailID string) *Task {
	return &Task{
		ID:         uuid.New().String(),
		Kind:       TaskStartWorkflow,
		EmailID:    emailID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// NewSignalTask creates a task that delivers a signal to a workflow.
func NewSignalTask(emailID, signal, reason string) *Task {
	return &Task{
		ID:         uuid.New().String(),
		Kind:       TaskSignal,
		EmailID:    emailID,
		Signal:     signal,
		Reason:     reason,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Validate checks the fields a consumer relies on.
func (t *Task) Validate() error {
	switch t.Kind {
	case TaskStartWorkflow:
	case TaskSignal:
		if t.Signal == "" {
			return fmt.Errorf("signal task missing signal name")
		}
	default:
		return fmt.Errorf("unknown task kind %q", t.Kind)
	}
	if t.EmailID == "" {
		return fmt.Errorf("task missing email_id")
	}
	return nil
}

// Encode serializes the task for transport.
func (t *Task) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTask parses and validates a task from its wire form.
func DecodeTask(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
