// Package realtime delivers per-user events to browsers over Server-Sent Events.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event is one message pushed to a user.
type Event struct {
	Name    string      `json:"event"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Success bool        `json:"success"`
	Status  int         `json:"status"`
}

// Publisher sends events to a user's open streams.
type Publisher interface {
	Publish(ctx context.Context, userID string, ev Event)
}

const subscriberBuffer = 64

type subscriber struct {
	ch chan Event
}

// Hub fans events out to the streams each user has open in this process.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{}), logger: logger}
}

// Subscribe registers a stream for userID. The returned function unsubscribes and closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[userID][sub]; !ok {
				return
			}
			delete(h.subs[userID], sub)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			close(sub.ch)
		})
	}
}

// Publish delivers ev to every stream of userID. Full buffers drop the event.
func (h *Hub) Publish(_ context.Context, userID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[userID] {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("Dropping event for slow subscriber", zap.String("userID", userID), zap.String("event", ev.Name))
		}
	}
}

// Subscribers returns the number of open streams for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Close ends every open stream.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for userID, subs := range h.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(h.subs, userID)
	}
}

// envelope is the pub/sub payload carrying an event between processes.
type envelope struct {
	UserID string `json:"userId"`
	Event  Event  `json:"event"`
}

// RedisPublisher publishes events on a redis channel so that a worker process can reach
// streams held by the API process.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher creates a publisher on channel.
func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Publish serialises the event and publishes it. Failures are logged.
func (p *RedisPublisher) Publish(ctx context.Context, userID string, ev Event) {
	payload, err := json.Marshal(envelope{UserID: userID, Event: ev})
	if err != nil {
		p.logger.Error("Failed to encode event", zap.String("event", ev.Name), zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Error("Failed to publish event", zap.String("event", ev.Name), zap.Error(err))
	}
}

// Relay subscribes to channel and forwards every event into the hub until ctx is done.
func (h *Hub) Relay(ctx context.Context, client *redis.Client, channel string) error {
	pubsub := client.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	h.logger.Info("Relaying events from redis", zap.String("channel", channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("Discarding malformed event", zap.Error(err))
				continue
			}
			h.Publish(ctx, env.UserID, env.Event)
		}
	}
}
