// Package middleware wraps a ports.StateStore to transform run state on its
// way to and from the backend.
package middleware

import "github.com/aretw0/operad/pkg/ports"

// Middleware allows wrapping a StateStore to add behavior.
type Middleware func(ports.StateStore) ports.StateStore

// Chain applies mws to store. The first middleware is the outermost one, so
// it sees the state first on Save and last on Load.
func Chain(store ports.StateStore, mws ...Middleware) ports.StateStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
