package coordinator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"codeclash/internal/session"
)

type cancelRequest struct {
	SessionID string `json:"session_id"`
}

func controlTopic(instanceID string) string {
	return "control:cancel:" + instanceID
}

// startDeadlineTimer schedules the single deadline-style timer for a
// session this instance owns. The handle never leaves this process.
func (c *Coordinator) startDeadlineTimer(sessionID string, fireAt time.Time) {
	d := fireAt.Sub(c.clock.Now())
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	if old, ok := c.timers[sessionID]; ok {
		old.Stop()
	}
	c.timers[sessionID] = c.clock.AfterFunc(d, func() { c.onDeadline(sessionID) })
	c.mu.Unlock()
}

func (c *Coordinator) cancelDeadlineTimer(sessionID string) {
	c.mu.Lock()
	if t, ok := c.timers[sessionID]; ok {
		t.Stop()
		delete(c.timers, sessionID)
	}
	c.mu.Unlock()
}

func (c *Coordinator) onDeadline(sessionID string) {
	c.mu.Lock()
	delete(c.timers, sessionID)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.RequestEnd(ctx, sessionID, session.ReasonTimeout, ""); err != nil && err != session.ErrNotFound {
		log.Error().Err(err).Str("session_id", sessionID).Msg("timeout end failed")
	}
}

// requestRemoteCancel asks the owning instance to clear its local timer.
// Delivery is best-effort; exactly-once completion never depends on it.
func (c *Coordinator) requestRemoteCancel(ctx context.Context, owner, sessionID string) {
	payload, _ := json.Marshal(cancelRequest{SessionID: sessionID})
	if err := c.bus.Publish(ctx, controlTopic(owner), payload); err != nil {
		log.Warn().Err(err).
			Str("session_id", sessionID).
			Str("owner", owner).
			Msg("timer cancel publish failed")
	}
}

func (c *Coordinator) subscribeControl(ctx context.Context) error {
	sub, err := c.bus.Subscribe(ctx, controlTopic(c.cfg.InstanceID))
	if err != nil {
		return err
	}
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				var req cancelRequest
				if err := json.Unmarshal(msg.Payload, &req); err != nil || req.SessionID == "" {
					log.Warn().Str("topic", msg.Topic).Msg("malformed cancel request dropped")
					continue
				}
				c.cancelDeadlineTimer(req.SessionID)
			}
		}
	}()
	return nil
}
