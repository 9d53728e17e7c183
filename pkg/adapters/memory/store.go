package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/operad/pkg/domain"
)

// Store implements ports.StateStore and ports.KernelStore in memory.
// Safe for concurrent use. Values are cloned on the way in and out so
// callers never share memory with the store.
type Store struct {
	mu      sync.RWMutex
	states  map[string]*domain.ExecutionState
	kernels map[string]*domain.KernelObject
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		states:  make(map[string]*domain.ExecutionState),
		kernels: make(map[string]*domain.KernelObject),
	}
}

// Save persists the state in memory.
func (s *Store) Save(ctx context.Context, runID string, state *domain.ExecutionState) error {
	copied := state.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[runID] = copied
	return nil
}

// Load retrieves the state from memory.
func (s *Store) Load(ctx context.Context, runID string) (*domain.ExecutionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return state.Clone(), nil
}

// Delete removes the state.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, runID)
	return nil
}

// List returns known runs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.states), nil
}

// PutKernel stores a copy of ko.
func (s *Store) PutKernel(ctx context.Context, ko *domain.KernelObject) error {
	copied := ko.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kernels[ko.ID] = copied
	return nil
}

// GetKernel returns a copy of the stored kernel.
func (s *Store) GetKernel(ctx context.Context, id string) (*domain.KernelObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ko, ok := s.kernels[id]
	if !ok {
		return nil, domain.ErrKernelNotFound
	}
	return ko.Clone(), nil
}

// DeleteKernel removes a kernel.
func (s *Store) DeleteKernel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kernels, id)
	return nil
}

// ListKernels returns stored kernel ids, sorted.
func (s *Store) ListKernels(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.kernels), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
