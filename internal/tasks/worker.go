package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// ConsumerGroup is the redis consumer group of the task workers.
	ConsumerGroup = "texplicit_workers"

	DefaultBatchSize     = 10
	DefaultConcurrency   = 4
	DefaultBlockTimeout  = 5 * time.Second
	DefaultClaimInterval = 30 * time.Second
	// DefaultClaimIdle must exceed the longest task, or running reports get claimed twice.
	DefaultClaimIdle   = 45 * time.Minute
	DefaultTaskTimeout = 30 * time.Minute
)

// WorkerOptions tunes a Worker. Zero values select the defaults.
type WorkerOptions struct {
	Stream      string
	MaxRetries  int
	BatchSize   int
	Concurrency int
	TaskTimeout time.Duration
	// RetryBase is the first backoff; attempt n waits RetryBase * 2^(n-1).
	RetryBase time.Duration
}

// Worker consumes the task stream through a consumer group.
type Worker struct {
	registry   *Registry
	logger     *zap.Logger
	consumerID string
	opts       WorkerOptions
	stream     taskStream

	started     bool
	draining    bool
	stopReading context.CancelFunc
	cancel      context.CancelFunc
	done        chan struct{}
	mu          sync.Mutex
}

// taskStream is the broker side of the worker.
type taskStream interface {
	ensureGroup(ctx context.Context) error
	fetch(ctx context.Context) ([]redis.XMessage, error)
	ack(ctx context.Context, id string)
	deadLetter(ctx context.Context, msg redis.XMessage, reason, detail string)
}

// NewWorker creates a worker for the given stream.
func NewWorker(client *redis.Client, registry *Registry, opts WorkerOptions, logger *zap.Logger) *Worker {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 2 * time.Second
	}
	consumerID := NewConsumerID()
	logger = logger.With(zap.String("component", "tasks.worker"), zap.String("consumerID", consumerID))
	return &Worker{
		registry:   registry,
		logger:     logger,
		consumerID: consumerID,
		opts:       opts,
		stream: &redisStream{
			client:        client,
			name:          opts.Stream,
			consumerID:    consumerID,
			batchSize:     opts.BatchSize,
			logger:        logger,
			blockTimeout:  DefaultBlockTimeout,
			claimInterval: DefaultClaimInterval,
			claimIdle:     DefaultClaimIdle,
			claimStartID:  "0-0",
		},
	}
}

// NewConsumerID creates a consumer name unique to this process.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}

// Run consumes tasks until ctx is cancelled or Shutdown is called. Tasks already read
// keep running after Shutdown stops the reads.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	taskCtx, cancel := context.WithCancel(ctx)
	readCtx, stopReading := context.WithCancel(taskCtx)
	w.cancel, w.stopReading = cancel, stopReading
	draining := w.draining
	w.mu.Unlock()

	defer close(w.done)
	defer cancel()
	if draining {
		return nil
	}

	if err := w.stream.ensureGroup(readCtx); err != nil {
		if readCtx.Err() != nil {
			return nil
		}
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	w.logger.Info("Task worker started", zap.String("stream", w.opts.Stream), zap.Strings("types", w.registry.Types()))

	for {
		select {
		case <-readCtx.Done():
			w.logger.Info("Task worker stopping")
			return nil
		default:
		}

		messages, err := w.stream.fetch(readCtx)
		if err != nil {
			if readCtx.Err() != nil {
				w.logger.Info("Task worker stopping")
				return nil
			}
			w.logger.Error("Task worker iteration failed", zap.Error(err))
			sleep(readCtx, time.Second)
			continue
		}
		w.runBatch(taskCtx, messages)
	}
}

// Shutdown stops reading new tasks and waits for the running ones. When ctx expires
// first the running tasks are cancelled and left pending for another consumer.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.draining = true
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	stopReading, cancel, done := w.stopReading, w.cancel, w.done
	w.mu.Unlock()

	stopReading()
	select {
	case <-done:
		w.logger.Info("Task worker shutdown complete")
		return nil
	case <-ctx.Done():
		w.logger.Warn("Task worker shutdown timed out, cancelling running tasks")
		cancel()
		<-done
		return ctx.Err()
	}
}

func (w *Worker) runBatch(ctx context.Context, messages []redis.XMessage) {
	if len(messages) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(w.opts.Concurrency)
	for _, msg := range messages {
		msg := msg
		g.Go(func() error {
			w.processMessage(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
}

// processMessage runs one task with retries and always acknowledges it, dead-lettering on failure.
func (w *Worker) processMessage(ctx context.Context, msg redis.XMessage) {
	task, err := parseMessage(msg)
	if err != nil {
		w.stream.deadLetter(ctx, msg, "invalid_format", err.Error())
		w.stream.ack(ctx, msg.ID)
		return
	}

	logger := w.logger.With(zap.String("taskID", task.ID), zap.String("type", task.Type), zap.String("userID", task.UserID))
	if err := w.runWithRetry(ctx, task, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			// Left pending; another consumer claims it after restart.
			return
		}
		reason := "failed"
		switch {
		case errors.Is(err, ErrUnknownType):
			reason = "unknown_type"
		case errors.Is(err, ErrPermanent):
			reason = "permanent"
		}
		w.stream.deadLetter(ctx, msg, reason, err.Error())
	}
	w.stream.ack(ctx, msg.ID)
}

func (w *Worker) runWithRetry(ctx context.Context, task Task, logger *zap.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= w.opts.MaxRetries; attempt++ {
		start := time.Now()
		tctx, cancel := context.WithTimeout(ctx, w.opts.TaskTimeout)
		err := w.registry.Handle(tctx, task)
		cancel()
		if err == nil {
			logger.Info("Task processed", zap.Int("attempt", attempt), zap.Duration("duration", time.Since(start)))
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrUnknownType) || errors.Is(err, ErrPermanent) || ctx.Err() != nil {
			break
		}

		backoff := w.opts.RetryBase * time.Duration(1<<(attempt-1))
		logger.Warn("Task failed, retrying", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
		if attempt < w.opts.MaxRetries && !sleep(ctx, backoff) {
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	logger.Error("Task failed", zap.Error(lastErr))
	return lastErr
}

// redisStream reads the task stream through the worker consumer group.
type redisStream struct {
	client     *redis.Client
	name       string
	consumerID string
	batchSize  int
	logger     *zap.Logger

	blockTimeout  time.Duration
	claimInterval time.Duration
	claimIdle     time.Duration
	claimStartID  string
	lastClaim     time.Time
}

func (r *redisStream) ensureGroup(ctx context.Context) error {
	err := r.client.XGroupCreateMkStream(ctx, r.name, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// fetch returns stale pending tasks of dead consumers first, then new ones.
func (r *redisStream) fetch(ctx context.Context) ([]redis.XMessage, error) {
	messages, err := r.maybeClaimPending(ctx)
	if err != nil {
		r.logger.Warn("Failed to claim pending tasks", zap.Error(err))
	}
	if len(messages) > 0 {
		return messages, nil
	}
	return r.readBatch(ctx)
}

func (r *redisStream) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if !r.lastClaim.IsZero() && time.Since(r.lastClaim) < r.claimInterval {
		return nil, nil
	}
	r.lastClaim = time.Now()

	messages, start, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   r.name,
		Group:    ConsumerGroup,
		Consumer: r.consumerID,
		MinIdle:  r.claimIdle,
		Start:    r.claimStartID,
		Count:    int64(r.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		r.claimStartID = start
	}
	return messages, nil
}

func (r *redisStream) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: r.consumerID,
		Streams:  []string{r.name, ">"},
		Count:    int64(r.batchSize),
		Block:    r.blockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	return streams[0].Messages, nil
}

func (r *redisStream) deadLetter(ctx context.Context, msg redis.XMessage, reason, detail string) {
	r.logger.Warn("Dead-lettering task", zap.String("messageID", msg.ID), zap.String("reason", reason), zap.String("detail", detail))
	_, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStream(r.name),
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"reason":           reason,
			"detail":           detail,
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		r.logger.Error("Failed to write dead-letter entry", zap.String("messageID", msg.ID), zap.Error(err))
	}
}

func (r *redisStream) ack(ctx context.Context, id string) {
	if err := r.client.XAck(ctx, r.name, ConsumerGroup, id).Err(); err != nil {
		r.logger.Error("Failed to ack task", zap.String("messageID", id), zap.Error(err))
	}
}

func parseMessage(msg redis.XMessage) (Task, error) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return Task{}, errors.New("payload field missing or not a string")
	}
	var task Task
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return Task{}, err
	}
	if task.Type == "" || task.ID == "" {
		return Task{}, errors.New("task id or type missing")
	}
	return task, nil
}

func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
