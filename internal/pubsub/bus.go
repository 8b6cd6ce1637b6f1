package pubsub

import (
	"context"
	"strings"
)

// Message is a single publication delivered to subscribers.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus is a best-effort publish/subscribe transport scoped to currently
// running instances. It carries timer cancellation requests and realtime
// fan-out; it is never a system of record, and losing a message is safe.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe delivers messages whose topic matches any pattern. A
	// trailing "*" matches any suffix; anything else matches exactly.
	Subscribe(ctx context.Context, patterns ...string) (*Subscription, error)
}

// Subscription streams matching messages until closed. The channel is
// closed when the subscription ends.
type Subscription struct {
	C      <-chan Message
	cancel func()
}

func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func matchTopic(pattern, topic string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(topic, prefix)
	}
	return pattern == topic
}
