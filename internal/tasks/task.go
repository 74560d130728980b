// Package tasks moves slow work (report research, chat replies, scraping, embeddings) off the
// request path onto a redis stream consumed by background workers.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Task types.
const (
	TypeReportGenerate   = "report.generate"
	TypeChatReply        = "chat.reply"
	TypeNewsFetch        = "news.fetch"
	TypeDocumentsEmbed   = "documents.embed"
	TypeDocumentsSummary = "documents.summary"
)

// ErrUnknownType is returned for a task type with no registered handler.
var ErrUnknownType = errors.New("no handler registered for task type")

// ErrPermanent marks a failure that a retry cannot fix. Handlers return it through Permanent.
var ErrPermanent = errors.New("permanent task failure")

// Permanent wraps err so that the worker dead-letters the task without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Task is one unit of background work.
type Task struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	UserID     string          `json:"userId"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// Decode unmarshals the payload into v.
func (t Task) Decode(v interface{}) error {
	if err := json.Unmarshal(t.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Type, err)
	}
	return nil
}

// HandlerFunc executes a task.
type HandlerFunc func(ctx context.Context, task Task) error

// Queue accepts tasks for background execution.
type Queue interface {
	Enqueue(ctx context.Context, taskType, userID string, payload interface{}) (string, error)
}

// Registry maps task types to handlers. Handlers may be registered after the queue is built.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register sets the handler for taskType, replacing any previous one.
func (r *Registry) Register(taskType string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskType] = fn
}

// Handle runs the handler registered for task.Type.
func (r *Registry) Handle(ctx context.Context, task Task) error {
	r.mu.RLock()
	fn, ok := r.handlers[task.Type]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, task.Type)
	}
	return fn(ctx, task)
}

// Types lists the registered task types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

func newTask(taskType, userID string, payload interface{}) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return Task{
		ID:         ulid.Make().String(),
		Type:       taskType,
		UserID:     userID,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}
