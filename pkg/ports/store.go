package ports

import (
	"context"

	"github.com/aretw0/operad/pkg/domain"
)

// StateStore persists execution state so a frozen, cancelled or crashed run
// can be resumed without re-running completed nodes.
type StateStore interface {
	// Save persists the state for a given run ID.
	Save(ctx context.Context, runID string, state *domain.ExecutionState) error

	// Load retrieves the state for a given run ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.ExecutionState, error)

	// Delete removes the state for a given run ID. Deleting an unknown run is not an error.
	Delete(ctx context.Context, runID string) error

	// List returns the known run IDs.
	List(ctx context.Context) ([]string, error)
}

// KernelStore persists compiled kernel objects.
// Implementations that serialize must load through composer.Decode, which
// treats the stored document as untrusted.
type KernelStore interface {
	// PutKernel stores ko under ko.ID, replacing any previous version.
	PutKernel(ctx context.Context, ko *domain.KernelObject) error

	// GetKernel returns domain.ErrKernelNotFound for unknown ids.
	GetKernel(ctx context.Context, id string) (*domain.KernelObject, error)

	DeleteKernel(ctx context.Context, id string) error

	ListKernels(ctx context.Context) ([]string, error)
}
