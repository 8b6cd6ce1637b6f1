package session

import (
	"testing"
	"time"
)

func testSession() *Session {
	return &Session{
		ID:        "101",
		ProblemID: 7,
		Expected:  []string{"1", "2"},
		Status:    StatusWaiting,
		DurationS: 600,
		CreatedAt: time.Now(),
	}
}

func TestStatusOrdering(t *testing.T) {
	if !StatusWaiting.Before(StatusActive) {
		t.Fatal("waiting should precede active")
	}
	if !StatusActive.Before(StatusCompleted) {
		t.Fatal("active should precede completed")
	}
	if StatusCompleted.Before(StatusWaiting) {
		t.Fatal("completed must not precede waiting")
	}
}

func TestFullyAdmitted(t *testing.T) {
	s := testSession()
	if s.FullyAdmitted() {
		t.Fatal("empty session reported fully admitted")
	}
	s.Admitted = map[string]PlayerState{"1": {Name: "alice"}}
	if s.FullyAdmitted() {
		t.Fatal("one of two players reported fully admitted")
	}
	s.Admitted["2"] = PlayerState{Name: "bob"}
	if !s.FullyAdmitted() {
		t.Fatal("both players admitted but not reported full")
	}
}

func TestIsExpectedAndOpponent(t *testing.T) {
	s := testSession()
	if !s.IsExpected("1") || !s.IsExpected("2") {
		t.Fatal("expected players not recognized")
	}
	if s.IsExpected("3") {
		t.Fatal("unexpected player recognized")
	}
	if got := s.Opponent("1"); got != "2" {
		t.Fatalf("Opponent(1) = %q, want 2", got)
	}
}

func TestDeadline(t *testing.T) {
	s := testSession()
	if !s.Deadline().IsZero() {
		t.Fatal("deadline set before activation")
	}
	s.StartedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	want := s.StartedAt.Add(10 * time.Minute)
	if !s.Deadline().Equal(want) {
		t.Fatalf("Deadline = %v, want %v", s.Deadline(), want)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := testSession()
	s.Admitted = map[string]PlayerState{"1": {Name: "alice", Passed: 3}}
	c := s.Clone()
	c.Admitted["1"] = PlayerState{Name: "alice", Passed: 9}
	c.Expected[0] = "9"
	if s.Admitted["1"].Passed != 3 {
		t.Fatal("clone shares admitted map")
	}
	if s.Expected[0] != "1" {
		t.Fatal("clone shares expected slice")
	}
}

func TestDecideTimeout(t *testing.T) {
	s := testSession()
	s.Admitted = map[string]PlayerState{
		"1": {Name: "alice", Passed: 4, Total: 10},
		"2": {Name: "bob", Passed: 2, Total: 10},
	}
	out := Decide(s, ReasonTimeout, "")
	if out.WinnerID != "1" || out.LoserID != "2" || out.Draw {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestDecideTimeoutZeroZeroIsDraw(t *testing.T) {
	s := testSession()
	s.Admitted = map[string]PlayerState{"1": {}, "2": {}}
	out := Decide(s, ReasonTimeout, "")
	if !out.Draw || out.WinnerID != "" || out.LoserID != "" {
		t.Fatalf("0-0 timeout should draw, got %+v", out)
	}
}

func TestDecideEarlyCompletion(t *testing.T) {
	s := testSession()
	s.Admitted = map[string]PlayerState{
		"1": {Passed: 1, Total: 10},
		"2": {Passed: 9, Total: 10},
	}
	// The triggering player wins outright regardless of running score.
	out := Decide(s, ReasonEarlyCompletion, "1")
	if out.WinnerID != "1" || out.LoserID != "2" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestDecideForfeit(t *testing.T) {
	s := testSession()
	out := Decide(s, ReasonForfeit, "2")
	if out.WinnerID != "1" || out.LoserID != "2" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestOutcomeOfCompleted(t *testing.T) {
	s := testSession()
	s.Status = StatusCompleted
	s.Reason = ReasonTimeout
	out := OutcomeOf(s)
	if !out.Draw || out.Reason != ReasonTimeout {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	s.WinnerID, s.LoserID = "2", "1"
	out = OutcomeOf(s)
	if out.Draw || out.WinnerID != "2" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}
