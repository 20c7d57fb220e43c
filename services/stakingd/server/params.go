package server

import (
	"sync"

	"duostake/native/staking"
)

// ParamStore is the daemon's administration collaborator: it serves the
// current staking terms and pause switch to the engine and accepts updates
// from the admin API. Updates only shape positions created afterwards; the
// engine snapshots terms into each position at creation.
type ParamStore struct {
	mu     sync.RWMutex
	params staking.Params
	paused bool
}

// NewParamStore seeds the store with the boot configuration.
func NewParamStore(params staking.Params, paused bool) *ParamStore {
	return &ParamStore{params: params, paused: paused}
}

// StakingParams implements the staking.ParamSource interface.
func (s *ParamStore) StakingParams() (staking.Params, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params, nil
}

// IsPaused implements the pause view consumed by the engine guard.
func (s *ParamStore) IsPaused(string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused
}

// SetPaused flips the administrative pause switch.
func (s *ParamStore) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

// Update replaces the staking terms after validation.
func (s *ParamStore) Update(params staking.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
	return nil
}

// Current returns the live staking terms.
func (s *ParamStore) Current() staking.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}
