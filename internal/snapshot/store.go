package snapshot

import (
	"sync"

	"postureguard/internal/model"
)

// Store keeps the latest snapshot per session, bounded by evicting the
// stalest entry.
type Store struct {
	mu        sync.RWMutex
	bySession map[string]model.SessionSnapshot
	limit     int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{
		bySession: make(map[string]model.SessionSnapshot),
		limit:     limit,
	}
}

func (s *Store) Update(snap model.SessionSnapshot) {
	if snap.SessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySession[snap.SessionID] = snap
	if len(s.bySession) > s.limit {
		s.evictOldest()
	}
}

func (s *Store) Get(sessionID string) (model.SessionSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.bySession[sessionID]
	return snap, ok
}

func (s *Store) GetAll() []model.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SessionSnapshot, 0, len(s.bySession))
	for _, snap := range s.bySession {
		out = append(out, snap)
	}
	return out
}

func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.bySession, sessionID)
	s.mu.Unlock()
}

func (s *Store) evictOldest() {
	var oldestID string
	for id, snap := range s.bySession {
		if oldestID == "" || snap.UpdatedAt.Before(s.bySession[oldestID].UpdatedAt) {
			oldestID = id
		}
	}
	if oldestID != "" {
		delete(s.bySession, oldestID)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.bySession = make(map[string]model.SessionSnapshot)
	s.mu.Unlock()
}
