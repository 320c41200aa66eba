package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps user states in process memory. States older than ttl are treated as absent.
type MemoryStorage struct {
	mu     sync.RWMutex
	states map[int64]*UserState
	ttl    time.Duration
	now    func() time.Time
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an in-process Storage. A non-positive ttl disables expiry.
func NewMemoryStorage(ttl time.Duration) *MemoryStorage {
	return &MemoryStorage{
		states: make(map[int64]*UserState),
		ttl:    ttl,
		now:    time.Now,
	}
}

// GetState returns a copy of the stored state or ErrStateNotFound.
func (s *MemoryStorage) GetState(_ context.Context, userID int64) (*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[userID]
	if !ok || s.expired(st) {
		return nil, ErrStateNotFound
	}

	return cloneState(st), nil
}

// SetState stores a copy of state. An unstamped state gets the current time.
func (s *MemoryStorage) SetState(_ context.Context, userID int64, state *UserState) error {
	stored := cloneState(state)
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = stored
	state.UpdatedAt = stored.UpdatedAt

	return nil
}

// ClearState removes the user's state.
func (s *MemoryStorage) ClearState(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, userID)
	return nil
}

// GetAllStates returns copies of every unexpired state.
func (s *MemoryStorage) GetAllStates(_ context.Context) ([]*UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*UserState, 0, len(s.states))
	for _, st := range s.states {
		if s.expired(st) {
			continue
		}
		result = append(result, cloneState(st))
	}

	return result, nil
}

func (s *MemoryStorage) expired(st *UserState) bool {
	return s.ttl > 0 && s.now().Sub(st.UpdatedAt) > s.ttl
}

func cloneState(state *UserState) *UserState {
	if state == nil {
		return nil
	}

	copyState := *state
	if state.Context != nil {
		ctxCopy := make(map[string]interface{}, len(state.Context))
		for k, v := range state.Context {
			ctxCopy[k] = v
		}
		copyState.Context = ctxCopy
	}
	return &copyState
}
