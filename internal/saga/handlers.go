package saga

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"codeclash/internal/session"
)

// Publisher is the subset of the producer the handlers publish with.
type Publisher interface {
	PublishSessionCreateRequested(ctx context.Context, req SessionCreateRequested) error
	PublishSessionReady(ctx context.Context, req SessionReady) error
}

// Notifier reaches a player's live connection wherever it is hosted.
type Notifier interface {
	PlayerEvent(ctx context.Context, playerID, event string, data any)
}

// Progress is the coordinator operation driven by grading reports.
type Progress interface {
	RecordProgress(ctx context.Context, sessionID, playerID string, passed, total int) error
}

// Handlers consume choreography steps. Every handler is idempotent:
// redelivery must not create duplicate sessions, broadcasts or updates.
// A nil return commits the offset; validation failures are logged and
// dropped, infrastructure failures are returned so the consumer retries
// the same payload before moving on.
type Handlers struct {
	store    session.Store
	pub      Publisher
	notify   Notifier
	progress Progress
	now      func() time.Time
}

func NewHandlers(st session.Store, pub Publisher, notify Notifier, progress Progress) *Handlers {
	return &Handlers{store: st, pub: pub, notify: notify, progress: progress, now: time.Now}
}

func dropInvalid(topic string, err error) bool {
	var verr *ValidationError
	if errors.As(err, &verr) {
		log.Warn().Str("topic", topic).Str("detail", verr.Detail).Msg("invalid payload dropped")
		return true
	}
	return false
}

// HandlePairingDecided turns each pairing decision into a stored session
// and the next choreography step. Create-if-absent makes replay harmless.
func (h *Handlers) HandlePairingDecided(ctx context.Context, payload []byte) error {
	var msg PairingDecided
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Warn().Err(err).Str("topic", TopicPairingDecided).Msg("undecodable payload dropped")
		return nil
	}
	if err := msg.Validate(); err != nil {
		if dropInvalid(TopicPairingDecided, err) {
			return nil
		}
		return err
	}

	for _, m := range msg.Matches {
		sid := SessionIDFor(m.ID)
		s := &session.Session{
			ID:         sid,
			ProblemID:  m.ProblemID,
			Difficulty: m.Difficulty,
			Expected:   []string{m.Player1ID, m.Player2ID},
			Status:     session.StatusWaiting,
			DurationS:  m.Duration,
			CreatedAt:  h.now().UTC(),
		}
		err := h.store.Create(ctx, s)
		switch {
		case errors.Is(err, session.ErrAlreadyExists):
			log.Debug().Str("session_id", sid).Msg("session already created, replay ignored")
		case err != nil:
			return err
		default:
			log.Info().
				Str("session_id", sid).
				Str("player1", m.Player1ID).
				Str("player2", m.Player2ID).
				Int64("problem_id", m.ProblemID).
				Msg("session created")
		}
		if err := h.store.IndexPlayer(ctx, m.Player1ID, sid); err != nil {
			return err
		}
		if err := h.store.IndexPlayer(ctx, m.Player2ID, sid); err != nil {
			return err
		}
		if err := h.pub.PublishSessionCreateRequested(ctx, SessionCreateRequested{
			SessionID: sid,
			ProblemID: m.ProblemID,
			Players:   []string{m.Player1ID, m.Player2ID},
			Duration:  m.Duration,
		}); err != nil {
			return err
		}
	}
	return nil
}

// HandleSessionCreateRequested acknowledges the room on the hosting side.
// The store already holds everything an instance needs, so the step only
// forwards to session-ready.
func (h *Handlers) HandleSessionCreateRequested(ctx context.Context, payload []byte) error {
	var msg SessionCreateRequested
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Warn().Err(err).Str("topic", TopicSessionCreateRequested).Msg("undecodable payload dropped")
		return nil
	}
	if err := msg.Validate(); err != nil {
		if dropInvalid(TopicSessionCreateRequested, err) {
			return nil
		}
		return err
	}
	if _, err := h.store.Get(ctx, msg.SessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			log.Warn().Str("session_id", msg.SessionID).Msg("create-requested for unknown session dropped")
			return nil
		}
		return err
	}
	return h.pub.PublishSessionReady(ctx, SessionReady{SessionID: msg.SessionID, PlayerIDs: msg.Players})
}

// HandleSessionReady invites both players to connect.
func (h *Handlers) HandleSessionReady(ctx context.Context, payload []byte) error {
	var msg SessionReady
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Warn().Err(err).Str("topic", TopicSessionReady).Msg("undecodable payload dropped")
		return nil
	}
	if err := msg.Validate(); err != nil {
		if dropInvalid(TopicSessionReady, err) {
			return nil
		}
		return err
	}
	for _, pid := range msg.PlayerIDs {
		h.notify.PlayerEvent(ctx, pid, "room-joined", map[string]any{"session_id": msg.SessionID})
	}
	return nil
}

// HandleGradingResult feeds sandbox reports into the coordinator; a full
// pass ends the session early inside RecordProgress.
func (h *Handlers) HandleGradingResult(ctx context.Context, payload []byte) error {
	var msg GradingResult
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Warn().Err(err).Str("topic", TopicGradingResult).Msg("undecodable payload dropped")
		return nil
	}
	if err := msg.Validate(); err != nil {
		if dropInvalid(TopicGradingResult, err) {
			return nil
		}
		return err
	}
	err := h.progress.RecordProgress(ctx, msg.SessionID, msg.PlayerID, msg.Passed, msg.Total)
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrNotExpected) {
		log.Warn().
			Str("session_id", msg.SessionID).
			Str("player_id", msg.PlayerID).
			Err(err).
			Msg("grading result dropped")
		return nil
	}
	return err
}
