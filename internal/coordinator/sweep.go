package coordinator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"codeclash/internal/session"
)

// runSweeper periodically forces a timeout on active sessions whose
// deadline already passed. A restarted owner loses its in-memory timer;
// without this sweep such a session would strand until TTL expiry. The
// sweep is safe on every instance because RequestEnd is idempotent.
func (c *Coordinator) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepOverdue(ctx)
		}
	}
}

func (c *Coordinator) sweepOverdue(ctx context.Context) {
	sessions, err := c.store.ActiveSessions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("sweep scan failed")
		return
	}
	now := c.clock.Now()
	for _, s := range sessions {
		if s.Deadline().After(now) {
			continue
		}
		log.Info().Str("session_id", s.ID).Msg("sweeping overdue session")
		if _, err := c.RequestEnd(ctx, s.ID, session.ReasonTimeout, ""); err != nil && err != session.ErrNotFound {
			log.Warn().Err(err).Str("session_id", s.ID).Msg("sweep end failed")
		}
	}
}
