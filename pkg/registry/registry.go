package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/operad/pkg/domain"
)

// ActionFunc is the implementation behind a `name(args)` clause action.
// Arguments arrive already resolved against the run context. A valid
// returned Value becomes the node's output.
type ActionFunc func(ctx context.Context, args []domain.Value) (domain.Value, error)

// Registry manages the available action functions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]ActionFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]ActionFunc),
	}
}

// Register adds a function to the registry.
// If a function with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (ActionFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute looks up a function by name and calls it.
// Returns an error wrapping domain.ErrUnknownFunction if it is not found.
func (r *Registry) Execute(ctx context.Context, name string, args []domain.Value) (domain.Value, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return domain.Value{}, fmt.Errorf("%w: %s", domain.ErrUnknownFunction, name)
	}
	return fn(ctx, args)
}
