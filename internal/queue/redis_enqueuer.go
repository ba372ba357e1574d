package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisEnqueuer publishes tasks to the Redis task stream.
type RedisEnqueuer struct {
	client *redis.Client
}

// NewRedisEnqueuer creates a new RedisEnqueuer backed by the given Redis client.
func NewRedisEnqueuer(client *redis.Client) *RedisEnqueuer {
	return &RedisEnqueuer{client: client}
}

// Enqueue adds a task to the stream using XADD.
// It returns the Redis stream entry ID.
func (e *RedisEnqueuer) Enqueue(ctx context.Context, task *Task) (string, error) {
	data, err := task.Encode()
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}

	entryID, err := e.client.XAdd(ctx, &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd to stream %s: %w", taskStream, err)
	}

	TasksEnqueuedTotal.Inc()

	return entryID, nil
}
