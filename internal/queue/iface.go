package queue

import "context"

// Enqueuer publishes tasks to the queue. It returns the backend's entry ID.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *Task) (string, error)
}

// Dequeuer consumes tasks from the queue.
// Start begins consuming in background goroutines.
// Stop gracefully shuts down consumers.
type Dequeuer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DeadLetterQueue manages tasks that failed delivery to the orchestrator.
type DeadLetterQueue interface {
	MoveToDLQ(ctx context.Context, task *Task, reason string) error
	Reprocess(ctx context.Context, taskIDs []string) (int, error)
}

// TaskHandler processes a single orchestration task. A returned error means
// the task was not handed off and should be retried by the queue.
type TaskHandler interface {
	HandleTask(ctx context.Context, task *Task) error
}
