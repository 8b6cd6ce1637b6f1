package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with the same create-if-absent, versioned
// compare-and-swap and TTL semantics as the Redis-backed store. It backs
// tests and single-instance development runs.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]memRecord
	players  map[string]memIndex
}

type memRecord struct {
	session   *Session
	expiresAt time.Time
}

type memIndex struct {
	sessionID string
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: map[string]memRecord{},
		players:  map[string]memIndex{},
	}
}

// SetClock replaces the time source, letting tests drive TTL expiry.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.sessions[s.ID]; ok && rec.expiresAt.After(m.now()) {
		return ErrAlreadyExists
	}
	stored := s.Clone()
	stored.Version = 1
	m.sessions[s.ID] = memRecord{session: stored, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	if !ok || !rec.expiresAt.After(m.now()) {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	return rec.session.Clone(), nil
}

func (m *MemoryStore) CompareAndSwap(ctx context.Context, s *Session) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[s.ID]
	if !ok || !rec.expiresAt.After(m.now()) {
		delete(m.sessions, s.ID)
		return nil, ErrNotFound
	}
	if rec.session.Version != s.Version {
		return nil, ErrVersionConflict
	}
	stored := s.Clone()
	stored.Version = s.Version + 1
	expiry := m.now().Add(m.ttl)
	m.sessions[s.ID] = memRecord{session: stored, expiresAt: expiry}
	// The player index lives exactly as long as the session it points at.
	for _, pid := range stored.Expected {
		m.players[pid] = memIndex{sessionID: s.ID, expiresAt: expiry}
	}
	return stored.Clone(), nil
}

func (m *MemoryStore) IndexPlayer(ctx context.Context, playerID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[playerID] = memIndex{sessionID: sessionID, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) SessionForPlayer(ctx context.Context, playerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.players[playerID]
	if !ok || !idx.expiresAt.After(m.now()) {
		delete(m.players, playerID)
		return "", ErrNotFound
	}
	return idx.sessionID, nil
}

func (m *MemoryStore) ActiveSessions(ctx context.Context) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []*Session
	for id, rec := range m.sessions {
		if !rec.expiresAt.After(now) {
			delete(m.sessions, id)
			continue
		}
		if rec.session.Status == StatusActive {
			out = append(out, rec.session.Clone())
		}
	}
	return out, nil
}
