package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/predictlabs/predictd/internal/domain"
)

// EventBus implements domain.EventBus using Redis Pub/Sub. Delivery is
// at-most-once and fan-out; the durable record lives in the stores, not on
// the bus.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying()}
}

// Publish sends a raw byte payload to a Redis Pub/Sub channel.
func (b *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a Redis Pub/Sub subscription over the given channels and
// returns a read-only message channel plus a cancel function. The message
// channel is closed when cancel is called or the context ends.
func (b *EventBus) Subscribe(ctx context.Context, channels ...string) (<-chan domain.BusMessage, func(), error) {
	pubsub := b.rdb.Subscribe(ctx, channels...)

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: subscribe %v: %w", channels, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan domain.BusMessage, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- domain.BusMessage{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

// Compile-time interface check.
var _ domain.EventBus = (*EventBus)(nil)
