package pubsub

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBus implements Bus over Redis pub/sub, reaching every running
// instance that shares the same Redis.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, patterns ...string) (*Subscription, error) {
	ps := b.client.PSubscribe(ctx, patterns...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	out := make(chan Message, 64)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
			default:
				// Best-effort: a slow consumer drops rather than blocks.
			}
		}
	}()
	return &Subscription{C: out, cancel: func() { _ = ps.Close() }}, nil
}
