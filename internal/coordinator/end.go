package coordinator

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"codeclash/internal/session"
)

// RequestEnd is the idempotent entry point for ending a session, reachable
// from a fired local timer, an external end signal on any instance, the
// forfeit grace, or the reconciliation sweep. Exactly one caller wins the
// conditional update to completed; everyone else gets the recorded outcome.
func (c *Coordinator) RequestEnd(ctx context.Context, sessionID, reason, trigger string) (session.Outcome, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		s, err := c.store.Get(ctx, sessionID)
		if err != nil {
			return session.Outcome{}, err
		}
		if s.Status == session.StatusCompleted {
			return session.OutcomeOf(s), nil
		}

		out := session.Decide(s, reason, trigger)
		owner := s.Owner
		next := s.Clone()
		next.Status = session.StatusCompleted
		next.Reason = reason
		next.WinnerID = out.WinnerID
		next.LoserID = out.LoserID
		next.Owner = ""
		if _, err := c.store.CompareAndSwap(ctx, next); err != nil {
			if errors.Is(err, session.ErrVersionConflict) {
				continue
			}
			return session.Outcome{}, err
		}

		// We won the completion race: stop the live timer. If the owner
		// is another instance this is a best-effort courtesy; its stale
		// fire is harmless either way.
		c.cancelGrace(sessionID, s.Expected...)
		if owner == c.cfg.InstanceID || owner == "" {
			c.cancelDeadlineTimer(sessionID)
		} else {
			c.requestRemoteCancel(ctx, owner, sessionID)
		}

		log.Info().
			Str("session_id", sessionID).
			Str("reason", reason).
			Str("winner_id", out.WinnerID).
			Bool("draw", out.Draw).
			Msg("session completed")
		c.events.SessionEvent(ctx, sessionID, "session-ended", out)
		if c.results != nil {
			if err := c.results.SessionEnded(ctx, out); err != nil {
				// Abandoned after bounded retries inside the sink; the
				// TTL and sweep nets bound the damage.
				log.Error().Err(err).Str("session_id", sessionID).Msg("publish session-ended failed")
			}
		}
		return out, nil
	}
	return session.Outcome{}, session.ErrVersionConflict
}
