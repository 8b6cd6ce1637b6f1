package session

// Outcome is the result derived exactly once when a session completes.
type Outcome struct {
	SessionID string `json:"session_id"`
	WinnerID  string `json:"winner_id,omitempty"`
	LoserID   string `json:"loser_id,omitempty"`
	Draw      bool   `json:"draw"`
	Reason    string `json:"reason"`
}

// Decide derives the outcome for a session that is about to complete.
// Early completion makes the triggering player the winner outright; a
// forfeit makes the deserting player the loser; a timeout compares last
// reported progress, with equal scores (including 0-0) yielding a draw.
func Decide(s *Session, reason, trigger string) Outcome {
	out := Outcome{SessionID: s.ID, Reason: reason}
	switch reason {
	case ReasonEarlyCompletion:
		out.WinnerID = trigger
		out.LoserID = s.Opponent(trigger)
	case ReasonForfeit:
		out.WinnerID = s.Opponent(trigger)
		out.LoserID = trigger
	default:
		if len(s.Expected) != 2 {
			out.Draw = true
			return out
		}
		a, b := s.Expected[0], s.Expected[1]
		pa, pb := s.Admitted[a].Passed, s.Admitted[b].Passed
		switch {
		case pa > pb:
			out.WinnerID, out.LoserID = a, b
		case pb > pa:
			out.WinnerID, out.LoserID = b, a
		default:
			out.Draw = true
		}
	}
	return out
}

// OutcomeOf reconstructs the recorded outcome of an already completed
// session, so redundant end requests can report the original result.
func OutcomeOf(s *Session) Outcome {
	return Outcome{
		SessionID: s.ID,
		WinnerID:  s.WinnerID,
		LoserID:   s.LoserID,
		Draw:      s.WinnerID == "" && s.LoserID == "",
		Reason:    s.Reason,
	}
}
