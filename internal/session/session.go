package session

import "time"

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Completion reasons recorded on a session.
const (
	ReasonTimeout         = "timeout"
	ReasonEarlyCompletion = "early-completion"
	ReasonForfeit         = "forfeit"
)

func (s Status) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted:
		return 2
	}
	return -1
}

// Before reports whether s precedes other in the waiting < active < completed
// order. Transitions must never move backwards.
func (s Status) Before(other Status) bool {
	return s.rank() < other.rank()
}

// PlayerState is the per-player record inside a session: display name and
// the last grading result reported for that player.
type PlayerState struct {
	Name     string    `json:"name"`
	Passed   int       `json:"passed"`
	Total    int       `json:"total"`
	JoinedAt time.Time `json:"joined_at"`
}

// Session is the shared record coordinated across instances. All fields are
// mutated exclusively through the store's versioned compare-and-swap; the
// Version token is bumped by the store on every successful write.
type Session struct {
	ID         string                 `json:"id"`
	ProblemID  int64                  `json:"problem_id"`
	Difficulty string                 `json:"difficulty"`
	Expected   []string               `json:"expected"`
	Admitted   map[string]PlayerState `json:"admitted,omitempty"`
	Status     Status                 `json:"status"`
	Reason     string                 `json:"reason,omitempty"`
	WinnerID   string                 `json:"winner_id,omitempty"`
	LoserID    string                 `json:"loser_id,omitempty"`
	StartedAt  time.Time              `json:"started_at,omitempty"`
	DurationS  int64                  `json:"duration_sec"`
	Owner      string                 `json:"owner,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	Version    int64                  `json:"version"`
}

func (s *Session) Duration() time.Duration {
	return time.Duration(s.DurationS) * time.Second
}

// Deadline is the instant the live timer should fire. Zero until activation.
func (s *Session) Deadline() time.Time {
	if s.StartedAt.IsZero() {
		return time.Time{}
	}
	return s.StartedAt.Add(s.Duration())
}

func (s *Session) IsExpected(playerID string) bool {
	for _, id := range s.Expected {
		if id == playerID {
			return true
		}
	}
	return false
}

func (s *Session) IsAdmitted(playerID string) bool {
	_, ok := s.Admitted[playerID]
	return ok
}

// FullyAdmitted reports whether every expected player has connected at least
// once. Admission never shrinks while the session is live.
func (s *Session) FullyAdmitted() bool {
	for _, id := range s.Expected {
		if _, ok := s.Admitted[id]; !ok {
			return false
		}
	}
	return len(s.Expected) > 0
}

// Opponent returns the other expected participant for a two-player session.
func (s *Session) Opponent(playerID string) string {
	for _, id := range s.Expected {
		if id != playerID {
			return id
		}
	}
	return ""
}

// Clone returns a deep copy safe to mutate before a compare-and-swap.
func (s *Session) Clone() *Session {
	out := *s
	out.Expected = append([]string(nil), s.Expected...)
	if s.Admitted != nil {
		out.Admitted = make(map[string]PlayerState, len(s.Admitted))
		for id, p := range s.Admitted {
			out.Admitted[id] = p
		}
	}
	return &out
}
