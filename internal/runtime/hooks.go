package runtime

import (
	"context"

	"github.com/aretw0/operad/pkg/domain"
)

func (e *Executor) emitNode(ctx context.Context, fn func(context.Context, *domain.NodeEvent), ev *domain.NodeEvent) {
	if fn != nil {
		fn(ctx, ev)
	}
}

func (e *Executor) emitFreeze(ctx context.Context, ev *domain.FreezeEvent) {
	if e.hooks.OnFreeze != nil {
		e.hooks.OnFreeze(ctx, ev)
	}
}

func (e *Executor) emitPatch(ctx context.Context, ev *domain.PatchEvent) {
	if e.hooks.OnPatch != nil {
		e.hooks.OnPatch(ctx, ev)
	}
}
