package coordinator

import (
	"context"
	"sync"
	"time"

	"codeclash/internal/pubsub"
	"codeclash/internal/session"
)

const casRetries = 5

// Events receives lifecycle fan-out. The gateway implements it by
// publishing to whichever instance holds each live connection.
type Events interface {
	SessionEvent(ctx context.Context, sessionID, event string, data any)
	PlayerEvent(ctx context.Context, playerID, event string, data any)
}

// ResultSink receives the single session-ended outcome for downstream
// collaborators (rating/history persistence).
type ResultSink interface {
	SessionEnded(ctx context.Context, out session.Outcome) error
}

type Config struct {
	InstanceID     string
	SweepInterval  time.Duration
	ReconnectGrace time.Duration
	Clock          Clock
}

// Coordinator applies the session state machine over the shared store.
// Deadline and forfeit-grace timers are private, in-memory, per-instance
// state; correctness never depends on them because every transition is a
// conditional update and the sweeper covers a crashed owner.
type Coordinator struct {
	cfg     Config
	store   session.Store
	bus     pubsub.Bus
	events  Events
	results ResultSink
	clock   Clock

	mu     sync.Mutex
	timers map[string]Timer
	graces map[string]Timer
}

func New(cfg Config, st session.Store, bus pubsub.Bus, events Events, results ResultSink) *Coordinator {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Second
	}
	if cfg.ReconnectGrace <= 0 {
		cfg.ReconnectGrace = 30 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Coordinator{
		cfg:     cfg,
		store:   st,
		bus:     bus,
		events:  events,
		results: results,
		clock:   clock,
		timers:  map[string]Timer{},
		graces:  map[string]Timer{},
	}
}

func (c *Coordinator) InstanceID() string {
	return c.cfg.InstanceID
}

// Start subscribes to this instance's control topic and runs the
// reconciliation sweeper until ctx is done.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.subscribeControl(ctx); err != nil {
		return err
	}
	go c.runSweeper(ctx)
	return nil
}
