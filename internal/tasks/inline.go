package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InlineQueue runs tasks in goroutines of the current process. It is used when no redis
// broker is reachable.
type InlineQueue struct {
	registry *Registry
	timeout  time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	draining bool
}

func NewInlineQueue(registry *Registry, timeout time.Duration, logger *zap.Logger) *InlineQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &InlineQueue{registry: registry, timeout: timeout, logger: logger, ctx: ctx, cancel: cancel}
}

// Enqueue starts the task immediately. The request context is not inherited.
func (q *InlineQueue) Enqueue(_ context.Context, taskType, userID string, payload interface{}) (string, error) {
	task, err := newTask(taskType, userID, payload)
	if err != nil {
		return "", err
	}

	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return "", context.Canceled
	}
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
		defer cancel()
		start := time.Now()
		if err := q.registry.Handle(ctx, task); err != nil {
			q.logger.Error("Inline task failed", zap.String("taskID", task.ID), zap.String("type", task.Type), zap.Error(err))
			return
		}
		q.logger.Debug("Inline task done", zap.String("taskID", task.ID), zap.String("type", task.Type), zap.Duration("duration", time.Since(start)))
	}()
	return task.ID, nil
}

// Shutdown waits for running tasks, cancelling them when ctx expires.
func (q *InlineQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.draining = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
