package tasks

import (
	"texplicit_backend/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewQueue publishes to the redis stream when a client is available and runs tasks
// in-process otherwise.
func NewQueue(client *redis.Client, registry *Registry, cfg *config.Config, logger *zap.Logger) Queue {
	if client == nil {
		logger.Warn("Task broker unavailable, tasks run in-process")
		return NewInlineQueue(registry, DefaultTaskTimeout, logger)
	}
	return NewStreamQueue(client, cfg.TaskStream, logger)
}

// NewWorkerFromConfig builds a worker for TASK_STREAM. It returns nil without a redis client.
func NewWorkerFromConfig(client *redis.Client, registry *Registry, cfg *config.Config, logger *zap.Logger) *Worker {
	if client == nil {
		return nil
	}
	return NewWorker(client, registry, WorkerOptions{
		Stream:     cfg.TaskStream,
		MaxRetries: cfg.TaskMaxRetries,
	}, logger)
}
