package session

import "context"

// Store is the shared, TTL-backed record store. It is the only source of
// truth for session state across instances; every record and player index
// entry expires a bounded time after its last successful write.
type Store interface {
	// Create stores a new session with create-if-absent semantics and
	// returns ErrAlreadyExists when a record for the id is present. The
	// stored record starts at version 1.
	Create(ctx context.Context, s *Session) error

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// CompareAndSwap writes s only if the stored version still equals
	// s.Version, bumping the version and refreshing the TTL. It returns
	// the stored copy, ErrVersionConflict when another instance won the
	// race, or ErrNotFound when the record expired.
	CompareAndSwap(ctx context.Context, s *Session) (*Session, error)

	// IndexPlayer maps a player to their current session with the same
	// TTL as the session record. Safe to repeat.
	IndexPlayer(ctx context.Context, playerID, sessionID string) error

	// SessionForPlayer resolves the player index or returns ErrNotFound.
	SessionForPlayer(ctx context.Context, playerID string) (string, error)

	// ActiveSessions lists sessions currently in StatusActive, for the
	// reconciliation sweep. Best-effort; expired records are skipped.
	ActiveSessions(ctx context.Context) ([]*Session, error)
}
