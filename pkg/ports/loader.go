package ports

import (
	"context"

	"github.com/aretw0/operad/pkg/domain"
)

// ClauseSource supplies raw clauses from a library (Loam, memory).
type ClauseSource interface {
	// GetClause returns the clause with the given id.
	GetClause(ctx context.Context, id string) (domain.ClauseInput, error)

	// ListClauses returns every clause id in the library, sorted.
	ListClauses(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying library changes.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
