package session

import "errors"

// Concurrency sentinels are expected outcomes of racing instances, not
// failures: callers either retry from a fresh read or treat the conflict as
// "someone else already applied this change".
var (
	ErrNotFound        = errors.New("session_not_found")
	ErrAlreadyExists   = errors.New("session_already_exists")
	ErrVersionConflict = errors.New("version_conflict")
	ErrNotExpected     = errors.New("player_not_expected")
)
