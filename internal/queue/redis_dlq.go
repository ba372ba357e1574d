package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DLQTask wraps a failed task with failure metadata.
type DLQTask struct {
	OriginalTask  *Task     `json:"original_task"`
	FailureReason string    `json:"failure_reason"`
	FinalError    string    `json:"final_error"`
	MovedAt       time.Time `json:"moved_at"`
}

// RedisDLQ manages dead letter queue operations backed by Redis Streams.
type RedisDLQ struct {
	client   *redis.Client
	enqueuer Enqueuer
}

// NewRedisDLQ creates a new RedisDLQ backed by the given Redis client and enqueuer.
func NewRedisDLQ(client *redis.Client, enqueuer Enqueuer) *RedisDLQ {
	return &RedisDLQ{client: client, enqueuer: enqueuer}
}

// MoveToDLQ moves a failed task to the dead letter stream.
func (d *RedisDLQ) MoveToDLQ(ctx context.Context, task *Task, reason string) error {
	dlqTask := DLQTask{
		OriginalTask:  task,
		FailureReason: reason,
		FinalError:    reason,
		MovedAt:       time.Now(),
	}

	data, err := json.Marshal(dlqTask)
	if err != nil {
		return fmt.Errorf("marshal dlq task: %w", err)
	}

	err = d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: taskDLQStream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd to dlq stream %s: %w", taskDLQStream, err)
	}

	DLQTasksTotal.WithLabelValues(reason).Inc()
	TasksProcessedTotal.WithLabelValues("dlq").Inc()

	return nil
}

// Reprocess removes tasks from the DLQ, resets their retry count, and
// re-enqueues them to the primary stream. It returns the number of tasks
// successfully reprocessed. taskIDs are Redis stream entry IDs.
func (d *RedisDLQ) Reprocess(ctx context.Context, taskIDs []string) (int, error) {
	reprocessed := 0

	for _, entryID := range taskIDs {
		// Read the task from DLQ.
		msgs, err := d.client.XRange(ctx, taskDLQStream, entryID, entryID).Result()
		if err != nil {
			return reprocessed, fmt.Errorf("xrange dlq entry %s: %w", entryID, err)
		}
		if len(msgs) == 0 {
			continue
		}

		data, ok := msgs[0].Values["data"].(string)
		if !ok {
			continue
		}

		var dlqTask DLQTask
		if err := json.Unmarshal([]byte(data), &dlqTask); err != nil {
			continue
		}

		// Reset retry count and re-enqueue.
		dlqTask.OriginalTask.RetryCount = 0
		if _, err := d.enqueuer.Enqueue(ctx, dlqTask.OriginalTask); err != nil {
			return reprocessed, fmt.Errorf("re-enqueue task %s: %w", dlqTask.OriginalTask.ID, err)
		}

		// Remove from DLQ.
		if err := d.client.XDel(ctx, taskDLQStream, entryID).Err(); err != nil {
			return reprocessed, fmt.Errorf("xdel dlq entry %s: %w", entryID, err)
		}

		reprocessed++
	}

	return reprocessed, nil
}
