package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeclash/internal/pubsub"
	"codeclash/internal/session"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	fireAt  time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, fireAt: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward and fires due timers in order, letting
// fired callbacks schedule follow-up timers within the same window.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due *fakeTimer
		for _, t := range c.timers {
			if !t.fired && !t.stopped && !t.fireAt.After(c.now) {
				due = t
				break
			}
		}
		if due != nil {
			due.fired = true
		}
		c.mu.Unlock()
		if due == nil {
			return
		}
		due.f()
	}
}

type capturedEvent struct {
	Scope string // "session" or "player"
	ID    string
	Name  string
	Data  any
}

type captureSink struct {
	mu     sync.Mutex
	events []capturedEvent
	ended  []session.Outcome
}

func (s *captureSink) SessionEvent(ctx context.Context, sessionID, event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, capturedEvent{Scope: "session", ID: sessionID, Name: event, Data: data})
}

func (s *captureSink) PlayerEvent(ctx context.Context, playerID, event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, capturedEvent{Scope: "player", ID: playerID, Name: event, Data: data})
}

func (s *captureSink) SessionEnded(ctx context.Context, out session.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, out)
	return nil
}

func (s *captureSink) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

type fixture struct {
	store *session.MemoryStore
	bus   *pubsub.MemoryBus
	clock *fakeClock
	sink  *captureSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := session.NewMemoryStore(time.Hour)
	store.SetClock(clock.Now)
	return &fixture{
		store: store,
		bus:   pubsub.NewMemoryBus(),
		clock: clock,
		sink:  &captureSink{},
	}
}

func (f *fixture) coordinator(instanceID string) *Coordinator {
	return New(Config{
		InstanceID:     instanceID,
		SweepInterval:  time.Minute,
		ReconnectGrace: 30 * time.Second,
		Clock:          f.clock,
	}, f.store, f.bus, f.sink, f.sink)
}

func (f *fixture) createSession(t *testing.T, id string) {
	t.Helper()
	s := &session.Session{
		ID:        id,
		ProblemID: 7,
		Expected:  []string{"1", "2"},
		Status:    session.StatusWaiting,
		DurationS: 600,
		CreatedAt: f.clock.Now(),
	}
	if err := f.store.Create(context.Background(), s); err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func (c *Coordinator) timerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
