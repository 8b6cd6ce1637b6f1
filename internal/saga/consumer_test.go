package saga

import (
	"context"
	"errors"
	"testing"
	"time"
)

func retryConsumer() *Consumer {
	c := NewConsumer([]string{"localhost:9092"}, "test")
	c.backoff = time.Millisecond
	return c
}

func TestHandleWithRetryRecoversTransientFailure(t *testing.T) {
	c := retryConsumer()
	calls := 0
	handle := func(ctx context.Context, payload []byte) error {
		calls++
		if calls < 3 {
			return errors.New("store unavailable")
		}
		return nil
	}

	if err := c.handleWithRetry(context.Background(), TopicPairingDecided, []byte("{}"), handle); err != nil {
		t.Fatalf("retry = %v, want nil after recovery", err)
	}
	if calls != 3 {
		t.Fatalf("handler calls = %d, want 3", calls)
	}
}

func TestHandleWithRetryGivesUpAfterBoundedAttempts(t *testing.T) {
	c := retryConsumer()
	calls := 0
	sentinel := errors.New("broker down")
	handle := func(ctx context.Context, payload []byte) error {
		calls++
		return sentinel
	}

	if err := c.handleWithRetry(context.Background(), TopicGradingResult, nil, handle); !errors.Is(err, sentinel) {
		t.Fatalf("retry = %v, want the handler error", err)
	}
	if calls != handleAttempts {
		t.Fatalf("handler calls = %d, want %d", calls, handleAttempts)
	}
}

func TestHandleWithRetryStopsOnCancel(t *testing.T) {
	c := retryConsumer()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handle := func(ctx context.Context, payload []byte) error {
		calls++
		cancel()
		return errors.New("store unavailable")
	}

	if err := c.handleWithRetry(ctx, TopicSessionReady, nil, handle); !errors.Is(err, context.Canceled) {
		t.Fatalf("retry = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1 after cancel", calls)
	}
}
