package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"codeclash/internal/session"
)

func graceKey(sessionID, playerID string) string {
	return sessionID + "/" + playerID
}

// PlayerDisconnected starts the forfeit grace for a player who dropped
// mid-session. Reconnecting (re-admission) within the grace cancels it; a
// disconnect from a waiting session is ignored and left to TTL expiry.
func (c *Coordinator) PlayerDisconnected(sessionID, playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := c.store.Get(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).
			Str("session_id", sessionID).
			Str("player_id", playerID).
			Msg("disconnect lookup failed, leaving session to the sweep")
		return
	}
	if s.Status != session.StatusActive {
		return
	}

	c.mu.Lock()
	key := graceKey(sessionID, playerID)
	if old, ok := c.graces[key]; ok {
		old.Stop()
	}
	c.graces[key] = c.clock.AfterFunc(c.cfg.ReconnectGrace, func() { c.onGraceExpired(sessionID, playerID) })
	c.mu.Unlock()
	log.Info().Str("session_id", sessionID).Str("player_id", playerID).Msg("forfeit grace started")
}

func (c *Coordinator) onGraceExpired(sessionID, playerID string) {
	c.mu.Lock()
	delete(c.graces, graceKey(sessionID, playerID))
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.RequestEnd(ctx, sessionID, session.ReasonForfeit, playerID); err != nil && err != session.ErrNotFound {
		log.Error().Err(err).Str("session_id", sessionID).Msg("forfeit end failed")
	}
}

func (c *Coordinator) cancelGrace(sessionID string, playerIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pid := range playerIDs {
		key := graceKey(sessionID, pid)
		if t, ok := c.graces[key]; ok {
			t.Stop()
			delete(c.graces, key)
		}
	}
}
