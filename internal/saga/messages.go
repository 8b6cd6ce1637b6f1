package saga

import "fmt"

// Broker topics. pairing-decided arrives from the matchmaking collaborator;
// session-ended leaves for the persistence/rating collaborator; the rest
// drive the create→ready→notify choreography between instances.
const (
	TopicPairingDecided         = "pairing-decided"
	TopicSessionCreateRequested = "session-create-requested"
	TopicSessionReady           = "session-ready"
	TopicGradingResult          = "grading-result"
	TopicSessionEnded           = "session-ended"
)

// ValidationError marks a malformed upstream message. The consumer logs and
// drops it without retry; the sender is expected to be self-consistent.
type ValidationError struct {
	Topic  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.Topic, e.Detail)
}

// MatchAssignment is one pairing decision, read-only input to session
// creation. IDs are assigned by the matchmaker, never minted here.
type MatchAssignment struct {
	ID         int64  `json:"id"`
	Player1ID  string `json:"player1_id"`
	Player2ID  string `json:"player2_id"`
	ProblemID  int64  `json:"problem_id"`
	Difficulty string `json:"difficulty"`
	Title      string `json:"title,omitempty"`
	Duration   int64  `json:"duration"`
}

type PairingDecided struct {
	Matches   []MatchAssignment `json:"matches"`
	Timestamp int64             `json:"timestamp"`
}

func (p *PairingDecided) Validate() error {
	if len(p.Matches) == 0 {
		return &ValidationError{Topic: TopicPairingDecided, Detail: "no matches"}
	}
	for i, m := range p.Matches {
		switch {
		case m.ID == 0:
			return &ValidationError{Topic: TopicPairingDecided, Detail: fmt.Sprintf("match %d missing id", i)}
		case m.Player1ID == "" || m.Player2ID == "":
			return &ValidationError{Topic: TopicPairingDecided, Detail: fmt.Sprintf("match %d missing player", i)}
		case m.Player1ID == m.Player2ID:
			return &ValidationError{Topic: TopicPairingDecided, Detail: fmt.Sprintf("match %d pairs a player with themselves", i)}
		case m.Duration <= 0:
			return &ValidationError{Topic: TopicPairingDecided, Detail: fmt.Sprintf("match %d has no duration", i)}
		}
	}
	return nil
}

type SessionCreateRequested struct {
	SessionID string   `json:"session_id"`
	ProblemID int64    `json:"problem_id"`
	Players   []string `json:"players"`
	Duration  int64    `json:"duration"`
}

func (p *SessionCreateRequested) Validate() error {
	if p.SessionID == "" {
		return &ValidationError{Topic: TopicSessionCreateRequested, Detail: "missing session_id"}
	}
	if len(p.Players) != 2 {
		return &ValidationError{Topic: TopicSessionCreateRequested, Detail: "expected two players"}
	}
	return nil
}

type SessionReady struct {
	SessionID string   `json:"session_id"`
	PlayerIDs []string `json:"player_ids"`
}

func (p *SessionReady) Validate() error {
	if p.SessionID == "" {
		return &ValidationError{Topic: TopicSessionReady, Detail: "missing session_id"}
	}
	if len(p.PlayerIDs) == 0 {
		return &ValidationError{Topic: TopicSessionReady, Detail: "no players"}
	}
	return nil
}

// GradingResult is the sandbox collaborator's report for one submission.
type GradingResult struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	Passed    int    `json:"passed"`
	Total     int    `json:"total"`
}

func (p *GradingResult) Validate() error {
	switch {
	case p.SessionID == "":
		return &ValidationError{Topic: TopicGradingResult, Detail: "missing session_id"}
	case p.PlayerID == "":
		return &ValidationError{Topic: TopicGradingResult, Detail: "missing player_id"}
	case p.Total <= 0:
		return &ValidationError{Topic: TopicGradingResult, Detail: "total must be positive"}
	case p.Passed < 0 || p.Passed > p.Total:
		return &ValidationError{Topic: TopicGradingResult, Detail: "passed out of range"}
	}
	return nil
}

type SessionEnded struct {
	SessionID string `json:"session_id"`
	WinnerID  string `json:"winner_id,omitempty"`
	LoserID   string `json:"loser_id,omitempty"`
	Draw      bool   `json:"draw"`
	Reason    string `json:"reason"`
}
