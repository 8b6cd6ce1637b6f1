package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"codeclash/internal/session"
)

const (
	publishTimeout  = 10 * time.Second
	publishAttempts = 3
)

// Producer publishes choreography steps. Writes are synchronous with
// all-replica acks; a failed publish is retried a bounded number of times
// and then abandoned to the TTL/sweep safety nets.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

func (p *Producer) publish(ctx context.Context, topic, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	var lastErr error
	for attempt := 0; attempt < publishAttempts; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, publishTimeout)
		lastErr = p.writer.WriteMessages(wctx, msg)
		cancel()
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 200 * time.Millisecond):
		}
	}
	return fmt.Errorf("produce %s: %w", topic, lastErr)
}

func (p *Producer) PublishSessionCreateRequested(ctx context.Context, req SessionCreateRequested) error {
	return p.publish(ctx, TopicSessionCreateRequested, req.SessionID, req)
}

func (p *Producer) PublishSessionReady(ctx context.Context, req SessionReady) error {
	return p.publish(ctx, TopicSessionReady, req.SessionID, req)
}

// SessionEnded satisfies the coordinator's result sink.
func (p *Producer) SessionEnded(ctx context.Context, out session.Outcome) error {
	return p.publish(ctx, TopicSessionEnded, out.SessionID, SessionEnded{
		SessionID: out.SessionID,
		WinnerID:  out.WinnerID,
		LoserID:   out.LoserID,
		Draw:      out.Draw,
		Reason:    out.Reason,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// SessionIDFor maps a matchmaker-assigned numeric match id onto the string
// session id used across the store and the wire.
func SessionIDFor(matchID int64) string {
	return strconv.FormatInt(matchID, 10)
}
