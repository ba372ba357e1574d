package queue

import (
	"testing"
)

func TestNewStartTask(t *testing.T) {
	task := NewStartTask("em-1")

	if task.ID == "" {
		t.Error("expected generated task ID")
	}
	if task.Kind != TaskStartWorkflow {
		t.Errorf("expected kind start_workflow, got %s", task.Kind)
	}
	if task.EmailID != "em-1" {
		t.Errorf("expected email ID em-1, got %s", task.EmailID)
	}
	if task.EnqueuedAt.IsZero() {
		t.Error("expected enqueue timestamp set")
	}
	if err := task.Validate(); err != nil {
		t.Errorf("expected valid task, got %v", err)
	}
}

func TestNewSignalTask(t *testing.T) {
	task := NewSignalTask("em-2", "reject", "bad copy")

	if task.Kind != TaskSignal || task.Signal != "reject" || task.Reason != "bad copy" {
		t.Errorf("unexpected signal task: %+v", task)
	}
	if err := task.Validate(); err != nil {
		t.Errorf("expected valid task, got %v", err)
	}
}

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{"valid start", Task{Kind: TaskStartWorkflow, EmailID: "em-1"}, false},
		{"valid signal", Task{Kind: TaskSignal, EmailID: "em-1", Signal: "cancel"}, false},
		{"missing email id", Task{Kind: TaskStartWorkflow}, true},
		{"signal without name", Task{Kind: TaskSignal, EmailID: "em-1"}, true},
		{"unknown kind", Task{Kind: "compact", EmailID: "em-1"}, true},
		{"empty kind", Task{EmailID: "em-1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTaskEncodeDecode(t *testing.T) {
	original := NewSignalTask("em-3", "approve", "")
	original.RetryCount = 2

	data, err := original.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeTask(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != original.ID || decoded.Kind != original.Kind {
		t.Errorf("identity not preserved: %+v", decoded)
	}
	if decoded.EmailID != "em-3" || decoded.Signal != "approve" {
		t.Errorf("payload not preserved: %+v", decoded)
	}
	if decoded.RetryCount != 2 {
		t.Errorf("retry count not preserved: %d", decoded.RetryCount)
	}
}

func TestDecodeTask_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{`},
		{"missing email id", `{"kind": "start_workflow"}`},
		{"unknown kind", `{"kind": "compact", "email_id": "em-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTask([]byte(tt.data)); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}
