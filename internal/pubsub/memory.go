package pubsub

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus with the same delivery semantics as the
// Redis one: best-effort, dropping for slow subscribers. Multiple
// coordinators in one test process can share it to exercise the
// cross-instance protocol.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[*memorySub]struct{}
}

type memorySub struct {
	patterns []string
	ch       chan Message
	closed   bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: map[*memorySub]struct{}{}}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		for _, pat := range sub.patterns {
			if !matchTopic(pat, topic) {
				continue
			}
			select {
			case sub.ch <- Message{Topic: topic, Payload: payload}:
			default:
			}
			break
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, patterns ...string) (*Subscription, error) {
	sub := &memorySub{patterns: patterns, ch: make(chan Message, 64)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if !sub.closed {
			sub.closed = true
			delete(b.subs, sub)
			close(sub.ch)
		}
	}
	return &Subscription{C: sub.ch, cancel: cancel}, nil
}
