// Package bus is the redis pub/sub fan-out between the web receiver and the
// bot processes. Delivery is best-effort: a consumer that is not subscribed
// at publish time misses the message, and the next upstream push (or the
// periodic resync) restores correctness.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SOF3/rule-mirror/pkg/logger"
)

// Bus publishes and subscribes JSON payloads on redis pub/sub topics. The
// redis client pools connections internally, so one Bus is safely shared
// across goroutines.
type Bus struct {
	rdb *redis.Client
}

// New wraps an existing redis client.
func New(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

// PublishUpdate publishes one complete Update on the updates topic.
func (b *Bus) PublishUpdate(ctx context.Context, update Update) error {
	return b.publish(ctx, TopicUpdates, update)
}

// PublishOnSeen publishes one complete OnSeen event.
func (b *Bus) PublishOnSeen(ctx context.Context, event OnSeen) error {
	return b.publish(ctx, TopicOnSeen, event)
}

func (b *Bus) publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	if err := b.rdb.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// SubscribeUpdates delivers decoded Update messages until ctx is cancelled.
// The returned channel is closed on cancellation.
func (b *Bus) SubscribeUpdates(ctx context.Context) <-chan Update {
	out := make(chan Update, 16)
	go subscribeLoop(ctx, b.rdb, TopicUpdates, out)
	return out
}

// SubscribeOnSeen delivers decoded OnSeen events until ctx is cancelled.
func (b *Bus) SubscribeOnSeen(ctx context.Context) <-chan OnSeen {
	out := make(chan OnSeen, 16)
	go subscribeLoop(ctx, b.rdb, TopicOnSeen, out)
	return out
}

// SubscribeRaw taps both topics and delivers the raw JSON payloads together
// with their topic name. Used by the websocket event bridge.
func (b *Bus) SubscribeRaw(ctx context.Context) <-chan RawEvent {
	out := make(chan RawEvent, 16)
	go func() {
		defer close(out)
		sub := b.rdb.Subscribe(ctx, TopicUpdates, TopicOnSeen)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- RawEvent{Topic: msg.Channel, Payload: json.RawMessage(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// RawEvent is an undecoded bus message, for observers that do not care about
// the payload schema.
type RawEvent struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// subscribeLoop decodes messages from one topic into out. A broken
// subscription is resubscribed after a short backoff; a malformed payload is
// logged and skipped, never fatal.
func subscribeLoop[T any](ctx context.Context, rdb *redis.Client, topic string, out chan<- T) {
	defer close(out)
	for {
		if !consume(ctx, rdb, topic, out) {
			return
		}
		logger.WarnCF("bus", "Subscription lost, resubscribing", map[string]interface{}{
			"topic": topic,
		})
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// consume runs one subscription until it breaks. Returns false when ctx is
// done and the loop should stop for good.
func consume[T any](ctx context.Context, rdb *redis.Client, topic string, out chan<- T) bool {
	sub := rdb.Subscribe(ctx, topic)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-ch:
			if !ok {
				return ctx.Err() == nil
			}
			var payload T
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				logger.ErrorCF("bus", "Dropping malformed payload", map[string]interface{}{
					"topic": topic,
					"error": err.Error(),
				})
				continue
			}
			select {
			case out <- payload:
			case <-ctx.Done():
				return false
			}
		}
	}
}
