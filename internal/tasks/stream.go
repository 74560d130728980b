package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// MaxStreamLen is the approximate cap of the task stream.
	MaxStreamLen = 100000

	// EnqueueTimeout bounds the XADD issued on the request path.
	EnqueueTimeout = 2 * time.Second
)

// DeadLetterStream is where tasks go after exhausting their retries.
func DeadLetterStream(stream string) string {
	return stream + ":dlq"
}

// StreamQueue appends tasks to a redis stream.
type StreamQueue struct {
	redis  *redis.Client
	stream string
	logger *zap.Logger
}

func NewStreamQueue(client *redis.Client, stream string, logger *zap.Logger) *StreamQueue {
	return &StreamQueue{redis: client, stream: stream, logger: logger}
}

// Enqueue XADDs the task and returns its id.
func (q *StreamQueue) Enqueue(ctx context.Context, taskType, userID string, payload interface{}) (string, error) {
	task, err := newTask(taskType, userID, payload)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, EnqueueTimeout)
	defer cancel()
	streamID, err := q.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"type":    task.Type,
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	q.logger.Debug("Task enqueued",
		zap.String("taskID", task.ID),
		zap.String("type", task.Type),
		zap.String("streamID", streamID),
	)
	return task.ID, nil
}
