package saga

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"codeclash/internal/session"
)

type fakePublisher struct {
	mu      sync.Mutex
	created []SessionCreateRequested
	ready   []SessionReady
}

func (f *fakePublisher) PublishSessionCreateRequested(_ context.Context, req SessionCreateRequested) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	return nil
}

func (f *fakePublisher) PublishSessionReady(_ context.Context, req SessionReady) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = append(f.ready, req)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) PlayerEvent(_ context.Context, playerID, event string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, playerID+":"+event)
}

type fakeProgress struct {
	mu    sync.Mutex
	calls []GradingResult
	err   error
}

func (f *fakeProgress) RecordProgress(_ context.Context, sessionID, playerID string, passed, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, GradingResult{SessionID: sessionID, PlayerID: playerID, Passed: passed, Total: total})
	return f.err
}

func newTestHandlers(t *testing.T) (*Handlers, *session.MemoryStore, *fakePublisher, *fakeNotifier, *fakeProgress) {
	t.Helper()
	st := session.NewMemoryStore(time.Hour)
	pub := &fakePublisher{}
	notify := &fakeNotifier{}
	progress := &fakeProgress{}
	return NewHandlers(st, pub, notify, progress), st, pub, notify, progress
}

func pairingPayload(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(PairingDecided{
		Matches: []MatchAssignment{{
			ID:         42,
			Player1ID:  "1",
			Player2ID:  "2",
			ProblemID:  7,
			Difficulty: "medium",
			Duration:   600,
		}},
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestPairingDecidedCreatesSession(t *testing.T) {
	ctx := context.Background()
	h, st, pub, _, _ := newTestHandlers(t)

	if err := h.HandlePairingDecided(ctx, pairingPayload(t)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	s, err := st.Get(ctx, "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Status != session.StatusWaiting {
		t.Fatalf("status = %s, want waiting", s.Status)
	}
	if s.ProblemID != 7 || s.DurationS != 600 {
		t.Fatalf("unexpected session fields: %+v", s)
	}
	if len(pub.created) != 1 || pub.created[0].SessionID != "42" {
		t.Fatalf("session-create-requested not published: %+v", pub.created)
	}
	for _, pid := range []string{"1", "2"} {
		sid, err := st.SessionForPlayer(ctx, pid)
		if err != nil || sid != "42" {
			t.Fatalf("player %s index = %q, %v", pid, sid, err)
		}
	}
}

func TestPairingDecidedReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h, st, pub, _, _ := newTestHandlers(t)
	payload := pairingPayload(t)

	if err := h.HandlePairingDecided(ctx, payload); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	s, _ := st.Get(ctx, "42")
	if err := h.HandlePairingDecided(ctx, payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	again, _ := st.Get(ctx, "42")
	if again.Version != s.Version {
		t.Fatalf("redelivery mutated the session: version %d -> %d", s.Version, again.Version)
	}
	// The follow-up publish repeats, which downstream absorbs the same way.
	if len(pub.created) != 2 {
		t.Fatalf("publishes = %d, want 2", len(pub.created))
	}
}

func TestPairingDecidedInvalidPayloadsDropped(t *testing.T) {
	ctx := context.Background()
	h, st, pub, _, _ := newTestHandlers(t)

	cases := map[string]string{
		"not json":     `{"matches": [`,
		"empty":        `{"matches": []}`,
		"self pairing": `{"matches": [{"id": 1, "player1_id": "1", "player2_id": "1", "duration": 600}]}`,
		"no duration":  `{"matches": [{"id": 1, "player1_id": "1", "player2_id": "2"}]}`,
	}
	for name, payload := range cases {
		if err := h.HandlePairingDecided(ctx, []byte(payload)); err != nil {
			t.Fatalf("%s: err = %v, want nil (drop)", name, err)
		}
	}
	if _, err := st.Get(ctx, "1"); err == nil {
		t.Fatal("invalid payload created a session")
	}
	if len(pub.created) != 0 {
		t.Fatalf("invalid payloads published %d messages", len(pub.created))
	}
}

func TestSessionCreateRequestedForwardsToReady(t *testing.T) {
	ctx := context.Background()
	h, st, pub, _, _ := newTestHandlers(t)
	if err := st.Create(ctx, &session.Session{
		ID:        "42",
		Expected:  []string{"1", "2"},
		Status:    session.StatusWaiting,
		DurationS: 600,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	payload, _ := json.Marshal(SessionCreateRequested{
		SessionID: "42", ProblemID: 7, Players: []string{"1", "2"}, Duration: 600,
	})
	if err := h.HandleSessionCreateRequested(ctx, payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(pub.ready) != 1 || pub.ready[0].SessionID != "42" {
		t.Fatalf("session-ready not published: %+v", pub.ready)
	}
}

func TestSessionCreateRequestedUnknownSessionDropped(t *testing.T) {
	ctx := context.Background()
	h, _, pub, _, _ := newTestHandlers(t)

	payload, _ := json.Marshal(SessionCreateRequested{
		SessionID: "missing", Players: []string{"1", "2"},
	})
	if err := h.HandleSessionCreateRequested(ctx, payload); err != nil {
		t.Fatalf("handle = %v, want nil (drop)", err)
	}
	if len(pub.ready) != 0 {
		t.Fatal("published ready for unknown session")
	}
}

func TestSessionReadyNotifiesPlayers(t *testing.T) {
	ctx := context.Background()
	h, _, _, notify, _ := newTestHandlers(t)

	payload, _ := json.Marshal(SessionReady{SessionID: "42", PlayerIDs: []string{"1", "2"}})
	if err := h.HandleSessionReady(ctx, payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	want := []string{"1:room-joined", "2:room-joined"}
	if len(notify.events) != 2 || notify.events[0] != want[0] || notify.events[1] != want[1] {
		t.Fatalf("events = %v, want %v", notify.events, want)
	}
}

func TestGradingResultFeedsProgress(t *testing.T) {
	ctx := context.Background()
	h, _, _, _, progress := newTestHandlers(t)

	payload, _ := json.Marshal(GradingResult{SessionID: "42", PlayerID: "1", Passed: 3, Total: 10})
	if err := h.HandleGradingResult(ctx, payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(progress.calls) != 1 {
		t.Fatalf("progress calls = %d, want 1", len(progress.calls))
	}
	got := progress.calls[0]
	if got.SessionID != "42" || got.PlayerID != "1" || got.Passed != 3 || got.Total != 10 {
		t.Fatalf("unexpected call: %+v", got)
	}
}

func TestGradingResultForGoneSessionDropped(t *testing.T) {
	ctx := context.Background()
	h, _, _, _, progress := newTestHandlers(t)
	progress.err = session.ErrNotFound

	payload, _ := json.Marshal(GradingResult{SessionID: "gone", PlayerID: "1", Passed: 1, Total: 10})
	if err := h.HandleGradingResult(ctx, payload); err != nil {
		t.Fatalf("handle = %v, want nil (drop)", err)
	}
}

func TestGradingResultOutOfRangeDropped(t *testing.T) {
	ctx := context.Background()
	h, _, _, _, progress := newTestHandlers(t)

	payload, _ := json.Marshal(GradingResult{SessionID: "42", PlayerID: "1", Passed: 11, Total: 10})
	if err := h.HandleGradingResult(ctx, payload); err != nil {
		t.Fatalf("handle = %v, want nil (drop)", err)
	}
	if len(progress.calls) != 0 {
		t.Fatal("out-of-range result reached the coordinator")
	}
}
