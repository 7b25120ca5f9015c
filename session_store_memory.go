package sentinel

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in a dual index (by id, by user) under a
// single mutex so every mutation is one atomic critical section.
type MemorySessionStore struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byUser map[string]map[string]struct{}
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore returns an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		byID:   map[string]*Session{},
		byUser: map[string]map[string]struct{}{},
	}
}

func (s *MemorySessionStore) Put(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.byID[cp.ID] = &cp
	ids, ok := s.byUser[cp.UserID]
	if !ok {
		ids = map[string]struct{}{}
		s.byUser[cp.UserID] = ids
	}
	ids[cp.ID] = struct{}{}
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (*Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byID[id]
	if !ok {
		return nil, false, nil
	}
	cp := *session
	return &cp, true, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id), nil
}

func (s *MemorySessionStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	out := make([]*Session, 0, len(ids))
	for id := range ids {
		if session, ok := s.byID[id]; ok {
			cp := *session
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemorySessionStore) DeleteByUser(ctx context.Context, userID, keepID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id := range s.byUser[userID] {
		if id == keepID {
			continue
		}
		if s.deleteLocked(id) {
			removed++
		}
	}
	return removed, nil
}

func (s *MemorySessionStore) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	session.LastActiveAt = at
	return true, nil
}

// deleteLocked removes the session from both indexes and drops the user's
// index entry entirely once it is empty. Callers hold the write lock.
func (s *MemorySessionStore) deleteLocked(id string) bool {
	session, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)

	if ids, ok := s.byUser[session.UserID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byUser, session.UserID)
		}
	}
	return true
}
