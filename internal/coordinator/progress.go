package coordinator

import (
	"context"
	"errors"

	"codeclash/internal/session"
)

// RecordProgress stores a grading report for a player and fans it out. A
// full pass ends the session early with the reporting player as winner.
func (c *Coordinator) RecordProgress(ctx context.Context, sessionID, playerID string, passed, total int) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		s, err := c.store.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Status == session.StatusCompleted {
			return nil
		}
		if !s.IsExpected(playerID) {
			return session.ErrNotExpected
		}

		next := s.Clone()
		if next.Admitted == nil {
			next.Admitted = map[string]session.PlayerState{}
		}
		ps := next.Admitted[playerID]
		ps.Passed = passed
		ps.Total = total
		next.Admitted[playerID] = ps
		if _, err := c.store.CompareAndSwap(ctx, next); err != nil {
			if errors.Is(err, session.ErrVersionConflict) {
				continue
			}
			return err
		}

		c.events.SessionEvent(ctx, sessionID, "progress-update", map[string]any{
			"player_id": playerID,
			"passed":    passed,
			"total":     total,
		})
		if total > 0 && passed == total {
			_, err := c.RequestEnd(ctx, sessionID, session.ReasonEarlyCompletion, playerID)
			return err
		}
		return nil
	}
	return session.ErrVersionConflict
}
