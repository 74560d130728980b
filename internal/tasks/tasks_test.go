package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type chatPayload struct {
	Prompt string `json:"prompt"`
}

func TestRegistry_Handle(t *testing.T) {
	r := NewRegistry()
	var got chatPayload
	r.Register(TypeChatReply, func(_ context.Context, task Task) error {
		return task.Decode(&got)
	})

	task, err := newTask(TypeChatReply, "u1", chatPayload{Prompt: "hello"})
	require.NoError(t, err)
	require.NoError(t, r.Handle(context.Background(), task))
	assert.Equal(t, "hello", got.Prompt)
	assert.Len(t, task.ID, 26)

	err = r.Handle(context.Background(), Task{Type: "nope"})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestInlineQueue_RunsAndDrains(t *testing.T) {
	r := NewRegistry()
	var runs int32
	r.Register(TypeNewsFetch, func(ctx context.Context, task Task) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	q := NewInlineQueue(r, time.Second, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(context.Background(), TypeNewsFetch, "u1", map[string]int{"i": i})
		require.NoError(t, err)
	}
	require.NoError(t, q.Shutdown(context.Background()))
	assert.EqualValues(t, 5, atomic.LoadInt32(&runs))

	_, err := q.Enqueue(context.Background(), TypeNewsFetch, "u1", nil)
	assert.Error(t, err)
}

func TestInlineQueue_ShutdownCancelsSlowTasks(t *testing.T) {
	r := NewRegistry()
	started := make(chan struct{})
	r.Register(TypeReportGenerate, func(ctx context.Context, task Task) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	q := NewInlineQueue(r, time.Minute, zap.NewNop())
	_, err := q.Enqueue(context.Background(), TypeReportGenerate, "u1", nil)
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)
}

func TestParseMessage(t *testing.T) {
	task, err := newTask(TypeDocumentsEmbed, "u1", map[string]string{"documentId": "d1"})
	require.NoError(t, err)
	raw, err := json.Marshal(task)
	require.NoError(t, err)

	parsed, err := parseMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{"payload": string(raw)}})
	require.NoError(t, err)
	assert.Equal(t, task.ID, parsed.ID)
	assert.Equal(t, TypeDocumentsEmbed, parsed.Type)

	_, err = parseMessage(redis.XMessage{ID: "2-0", Values: map[string]interface{}{}})
	assert.Error(t, err)
	_, err = parseMessage(redis.XMessage{ID: "3-0", Values: map[string]interface{}{"payload": `{"type":""}`}})
	assert.Error(t, err)
}

func TestWorker_RunWithRetry(t *testing.T) {
	r := NewRegistry()
	var calls int32
	r.Register(TypeDocumentsSummary, func(ctx context.Context, task Task) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("llm busy")
		}
		return nil
	})
	w := NewWorker(nil, r, WorkerOptions{Stream: "s", MaxRetries: 3, RetryBase: time.Millisecond}, zap.NewNop())

	err := w.runWithRetry(context.Background(), Task{ID: "t", Type: TypeDocumentsSummary}, zap.NewNop())
	assert.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, -10)
	err = w.runWithRetry(context.Background(), Task{ID: "t", Type: TypeDocumentsSummary}, zap.NewNop())
	assert.EqualError(t, err, "llm busy")

	err = w.runWithRetry(context.Background(), Task{ID: "t", Type: "missing"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestWorker_PermanentFailureIsNotRetried(t *testing.T) {
	r := NewRegistry()
	var calls int32
	r.Register(TypeNewsFetch, func(ctx context.Context, task Task) error {
		atomic.AddInt32(&calls, 1)
		return Permanent(errors.New("search down"))
	})
	w := NewWorker(nil, r, WorkerOptions{Stream: "s", MaxRetries: 3, RetryBase: time.Millisecond}, zap.NewNop())

	err := w.runWithRetry(context.Background(), Task{ID: "t", Type: TypeNewsFetch}, zap.NewNop())
	assert.ErrorIs(t, err, ErrPermanent)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.NoError(t, Permanent(nil))
}

// memStream hands out queued batches and records acknowledgements.
type memStream struct {
	batches chan []redis.XMessage

	mu    sync.Mutex
	acked []string
	dead  []string
}

func newMemStream() *memStream {
	return &memStream{batches: make(chan []redis.XMessage, 4)}
}

func (m *memStream) ensureGroup(context.Context) error { return nil }

func (m *memStream) fetch(ctx context.Context) ([]redis.XMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case b := <-m.batches:
		return b, nil
	}
}

func (m *memStream) ack(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, id)
}

func (m *memStream) deadLetter(_ context.Context, msg redis.XMessage, _, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = append(m.dead, msg.ID)
}

func (m *memStream) ackedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

func taskMessage(t *testing.T, id, taskType string) redis.XMessage {
	t.Helper()
	task, err := newTask(taskType, "u1", nil)
	require.NoError(t, err)
	raw, err := json.Marshal(task)
	require.NoError(t, err)
	return redis.XMessage{ID: id, Values: map[string]interface{}{"payload": string(raw)}}
}

func startWorker(t *testing.T, r *Registry) (*Worker, *memStream, chan error) {
	t.Helper()
	w := NewWorker(nil, r, WorkerOptions{Stream: "s", MaxRetries: 1}, zap.NewNop())
	stream := newMemStream()
	w.stream = stream
	errc := make(chan error, 1)
	go func() { errc <- w.Run(context.Background()) }()
	return w, stream, errc
}

func TestWorker_ShutdownWaitsForRunningTask(t *testing.T) {
	r := NewRegistry()
	started, release := make(chan struct{}), make(chan struct{})
	r.Register(TypeReportGenerate, func(ctx context.Context, task Task) error {
		close(started)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	w, stream, errc := startWorker(t, r)
	stream.batches <- []redis.XMessage{taskMessage(t, "1-0", TypeReportGenerate)}
	<-started

	shutdown := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown <- w.Shutdown(ctx)
	}()

	select {
	case err := <-shutdown:
		t.Fatalf("shutdown returned before the running task finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	require.NoError(t, <-shutdown)
	require.NoError(t, <-errc)
	assert.Equal(t, []string{"1-0"}, stream.ackedIDs())
}

func TestWorker_ShutdownDeadlineCancelsRunningTask(t *testing.T) {
	r := NewRegistry()
	started := make(chan struct{})
	r.Register(TypeReportGenerate, func(ctx context.Context, task Task) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	w, stream, errc := startWorker(t, r)
	stream.batches <- []redis.XMessage{taskMessage(t, "1-0", TypeReportGenerate)}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Shutdown(ctx), context.DeadlineExceeded)
	require.NoError(t, <-errc)
	assert.Empty(t, stream.ackedIDs(), "cancelled task stays pending for another consumer")
}

func TestWorker_ShutdownBeforeRun(t *testing.T) {
	w := NewWorker(nil, NewRegistry(), WorkerOptions{Stream: "s"}, zap.NewNop())
	require.NoError(t, w.Shutdown(context.Background()))
	w.stream = newMemStream()
	assert.NoError(t, w.Run(context.Background()))
}

func TestDeadLetterStream(t *testing.T) {
	assert.Equal(t, "texplicit:tasks:dlq", DeadLetterStream("texplicit:tasks"))
	assert.True(t, isConsumerGroupExistsError(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isConsumerGroupExistsError(nil))
}
