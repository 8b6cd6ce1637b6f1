package coordinator

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"codeclash/internal/session"
)

// Admit records a player's connection on the session. Repeat admission is
// an idempotent no-op; admission of the last expected player triggers
// activation on whichever instance gets there first.
func (c *Coordinator) Admit(ctx context.Context, sessionID, playerID, name string) (*session.Session, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		s, err := c.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if s.Status == session.StatusCompleted {
			// Duplicate delivery after the fact; report state, not error.
			return s, nil
		}
		if !s.IsExpected(playerID) {
			return nil, session.ErrNotExpected
		}
		if s.IsAdmitted(playerID) {
			c.cancelGrace(sessionID, playerID)
			// A fully admitted session still waiting means the last
			// admitting instance died before activating; finish the job.
			if s.FullyAdmitted() && s.Status == session.StatusWaiting {
				return c.activate(ctx, s)
			}
			return s, nil
		}

		next := s.Clone()
		if next.Admitted == nil {
			next.Admitted = map[string]session.PlayerState{}
		}
		next.Admitted[playerID] = session.PlayerState{Name: name, JoinedAt: c.clock.Now().UTC()}
		stored, err := c.store.CompareAndSwap(ctx, next)
		if errors.Is(err, session.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		c.events.SessionEvent(ctx, sessionID, "player-connected", map[string]any{
			"player_id": playerID,
			"name":      name,
		})
		if stored.FullyAdmitted() && stored.Status == session.StatusWaiting {
			return c.activate(ctx, stored)
		}
		return stored, nil
	}
	return nil, session.ErrVersionConflict
}

// activate flips waiting to active, making this instance the timer owner.
// Losing the conditional update means another instance already activated;
// that is the expected common case under concurrent admission, not an
// error.
func (c *Coordinator) activate(ctx context.Context, s *session.Session) (*session.Session, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		next := s.Clone()
		next.Status = session.StatusActive
		next.StartedAt = c.clock.Now().UTC()
		next.Owner = c.cfg.InstanceID
		stored, err := c.store.CompareAndSwap(ctx, next)
		if errors.Is(err, session.ErrVersionConflict) {
			fresh, err := c.store.Get(ctx, s.ID)
			if err != nil {
				return nil, err
			}
			if fresh.Status != session.StatusWaiting {
				return fresh, nil
			}
			s = fresh
			continue
		}
		if err != nil {
			return nil, err
		}

		c.startDeadlineTimer(stored.ID, stored.Deadline())
		log.Info().
			Str("session_id", stored.ID).
			Str("owner", c.cfg.InstanceID).
			Int64("duration_sec", stored.DurationS).
			Msg("session activated")
		c.events.SessionEvent(ctx, stored.ID, "session-started", map[string]any{
			"problem_id":   stored.ProblemID,
			"difficulty":   stored.Difficulty,
			"started_at":   stored.StartedAt,
			"duration_sec": stored.DurationS,
		})
		return stored, nil
	}
	return nil, session.ErrVersionConflict
}
