// Package notifications fans content events out to live WebSocket clients
// through Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"agora/internal/middleware"
	"agora/internal/models"

	"github.com/redis/go-redis/v9"
)

// EventsChannel carries every content event.
const EventsChannel = "events:content"

// Event is the envelope written to subscribers.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier provides helpers to publish events into Redis. Without Redis it
// delivers to the in-process sink set by a Hub, if any.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local func(payload string)
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish sends one event. Failures are logged, never returned.
func (n *Notifier) Publish(ctx context.Context, eventType string, payload any) {
	if n == nil {
		return
	}
	raw, err := json.Marshal(Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to encode event", slog.String("type", eventType), slog.String("error", err.Error()))
		return
	}

	if n.rdb == nil {
		n.mu.RLock()
		local := n.local
		n.mu.RUnlock()
		if local != nil {
			local(string(raw))
		}
		return
	}
	if err := n.rdb.Publish(ctx, EventsChannel, raw).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish event", slog.String("type", eventType), slog.String("error", err.Error()))
	}
}

// PublishPostCreated announces a stored, non-blocked post.
func (n *Notifier) PublishPostCreated(ctx context.Context, post *models.Post) {
	if post == nil || post.IsBlocked {
		return
	}
	n.Publish(ctx, EventPostCreated, post)
}

// PublishCommentCreated announces a stored, non-blocked comment under the
// given event type.
func (n *Notifier) PublishCommentCreated(ctx context.Context, comment *models.Comment, eventType string) {
	if comment == nil || comment.IsBlocked {
		return
	}
	n.Publish(ctx, eventType, comment)
}

func (n *Notifier) setLocal(fn func(payload string)) {
	n.mu.Lock()
	n.local = fn
	n.mu.Unlock()
}

// StartSubscriber subscribes to EventsChannel and calls onMessage for each
// payload until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, EventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in event subscriber", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
