package ports

import (
	"context"

	"github.com/aretw0/operad/pkg/domain"
)

// KernelEngine is the compile/execute surface adapters (HTTP, MCP, the run
// manager) drive. The root operad.Engine implements it.
type KernelEngine interface {
	// Compile parses inputs, resolves their graph and collapses it into a kernel.
	Compile(id string, inputs []domain.ClauseInput) (*domain.KernelObject, error)

	// Execute starts a new run. maxIterations <= 0 uses the kernel's bound.
	Execute(ctx context.Context, ko *domain.KernelObject, vars domain.Vars, maxIterations int) *domain.KOExecutionResult

	// Resume continues a run from prior without re-running completed nodes.
	Resume(ctx context.Context, ko *domain.KernelObject, vars domain.Vars, prior *domain.ExecutionState, maxIterations int) *domain.KOExecutionResult

	// HandleEvent applies a reflex event and returns the adapted kernel.
	// triggered is false when no patch was produced.
	HandleEvent(ev domain.ReflexEvent, vars domain.Vars, ko *domain.KernelObject) (adapted *domain.KernelObject, triggered bool, err error)
}
