package memory

import (
	"context"
	"sync"
	"time"

	"github.com/viralforge/account-service/internal/ports"
)

// LockoutStore is the in-process counterpart of the Redis lockout store.
type LockoutStore struct {
	mu     sync.Mutex
	states map[string]ports.LockoutState
}

func NewLockoutStore() *LockoutStore {
	return &LockoutStore{states: make(map[string]ports.LockoutState)}
}

func (s *LockoutStore) Get(_ context.Context, key string) (ports.LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key], nil
}

func (s *LockoutStore) RecordFailure(_ context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (ports.LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.states[key]
	// An expired lock starts a fresh failure window.
	if state.LockedUntil != nil && !state.LockedUntil.After(now) {
		state = ports.LockoutState{}
	}
	state.FailedCount++
	if state.FailedCount >= threshold {
		lockedUntil := now.Add(lockoutWindow).UTC()
		state.LockedUntil = &lockedUntil
	}
	s.states[key] = state
	return state, nil
}

func (s *LockoutStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}
