package sentinel

import (
	"context"
	"sync"
)

// MemoryLockStore keeps one AccountLockStatus per user id. Update runs its
// callback under the store mutex, so read-modify-write cycles are atomic
// and concurrent attempt bursts never lose increments.
type MemoryLockStore struct {
	mu    sync.Mutex
	locks map[string]*AccountLockStatus
}

var _ LockStore = (*MemoryLockStore)(nil)

// NewMemoryLockStore returns an empty in-memory store.
func NewMemoryLockStore() *MemoryLockStore {
	return &MemoryLockStore{locks: map[string]*AccountLockStatus{}}
}

func (s *MemoryLockStore) Get(ctx context.Context, userID string) (AccountLockStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.locks[userID]
	if !ok {
		return AccountLockStatus{}, false, nil
	}
	return *status, true, nil
}

func (s *MemoryLockStore) Update(ctx context.Context, userID string, fn func(*AccountLockStatus) error) (AccountLockStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, ok := s.locks[userID]
	if !ok {
		status = &AccountLockStatus{}
		s.locks[userID] = status
	}
	if err := fn(status); err != nil {
		return AccountLockStatus{}, err
	}
	return *status, nil
}

func (s *MemoryLockStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locks, userID)
	return nil
}
