// Package model provides shared state management for tensorreg estimators.
//
// Estimators compose a StateManager rather than embedding a base struct:
// it tracks the fitted flag and the data dimensions seen at fit time in a
// thread-safe way, so Predict and Score can validate incoming batches
// against the training shape.
package model

import (
	"fmt"
	"sync"
)

// StateManager manages the fitted state of an estimator.
type StateManager struct {
	Fitted bool // Public for gob encoding
	mu     sync.RWMutex

	// Per-sample tensor shape and sample count seen during fitting.
	// Public for gob encoding.
	SampleShape []int
	NSamples    int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{
		Fitted: false,
	}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
}

// Reset resets the fitted state and clears recorded dimensions.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.SampleShape = nil
	s.NSamples = 0
}

// SetDimensions records the per-sample tensor shape and sample count.
func (s *StateManager) SetDimensions(sampleShape []int, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SampleShape = append([]int(nil), sampleShape...)
	s.NSamples = nSamples
}

// GetDimensions returns the recorded per-sample shape and sample count.
func (s *StateManager) GetDimensions() (sampleShape []int, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.SampleShape...), s.NSamples
}

// RequireFitted returns an error if the model has not been fitted.
func (s *StateManager) RequireFitted() error {
	if !s.IsFitted() {
		return fmt.Errorf("model has not been fitted yet. Call Fit() first")
	}
	return nil
}
