package saga

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	handleAttempts = 5
	handleBackoff  = 500 * time.Millisecond
)

// HandlerFunc processes one message body. A nil return commits the
// offset; an error is retried in place with bounded backoff before the
// consumer commits past the message.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Consumer runs one group reader per subscribed topic. All instances
// share a group id, so each choreography step is handled once across
// the deployment while session/player events still fan out via the
// gateway's pub/sub layer.
type Consumer struct {
	brokers []string
	groupID string
	backoff time.Duration

	mu      sync.Mutex
	readers []*kafka.Reader
	wg      sync.WaitGroup
}

func NewConsumer(brokers []string, groupID string) *Consumer {
	return &Consumer{brokers: brokers, groupID: groupID, backoff: handleBackoff}
}

// Subscribe starts a reader goroutine for topic.
func (c *Consumer) Subscribe(ctx context.Context, topic string, handle HandlerFunc) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.brokers,
		GroupID:        c.groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // synchronous commits only
		StartOffset:    kafka.LastOffset,
	})
	c.mu.Lock()
	c.readers = append(c.readers, r)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx, r, topic, handle)
	}()
}

func (c *Consumer) run(ctx context.Context, r *kafka.Reader, topic string, handle HandlerFunc) {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			log.Error().Err(err).Str("topic", topic).Msg("fetch failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if err := c.handleWithRetry(ctx, topic, msg.Value, handle); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).
				Str("topic", topic).
				Int64("offset", msg.Offset).
				Msg("handler exhausted retries, message abandoned")
		}
		if err := r.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("offset commit failed")
		}
	}
}

// handleWithRetry retries a failed handler against the same payload.
// FetchMessage already advanced the reader past this offset, so skipping
// would let the next commit absorb the failure; the retries here are the
// redelivery. After bounded attempts the message is abandoned to the
// session TTL and the sweep.
func (c *Consumer) handleWithRetry(ctx context.Context, topic string, payload []byte, handle HandlerFunc) error {
	var lastErr error
	for attempt := 0; attempt < handleAttempts; attempt++ {
		if lastErr = handle(ctx, payload); lastErr == nil {
			return nil
		}
		log.Warn().Err(lastErr).
			Str("topic", topic).
			Int("attempt", attempt+1).
			Msg("handler failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * c.backoff):
		}
	}
	return lastErr
}

// Close stops all readers and waits for their loops to drain.
func (c *Consumer) Close() error {
	c.mu.Lock()
	readers := c.readers
	c.readers = nil
	c.mu.Unlock()

	var firstErr error
	for _, r := range readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.wg.Wait()
	return firstErr
}
