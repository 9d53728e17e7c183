package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/operad/pkg/domain"
)

// Combine fans every hook out to each set in order. Nil callbacks are skipped.
func Combine(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	node := func(pick func(domain.LifecycleHooks) func(context.Context, *domain.NodeEvent)) func(context.Context, *domain.NodeEvent) {
		var fns []func(context.Context, *domain.NodeEvent)
		for _, s := range sets {
			if fn := pick(s); fn != nil {
				fns = append(fns, fn)
			}
		}
		if len(fns) == 0 {
			return nil
		}
		return func(ctx context.Context, e *domain.NodeEvent) {
			for _, fn := range fns {
				fn(ctx, e)
			}
		}
	}

	var freezes []func(context.Context, *domain.FreezeEvent)
	var patches []func(context.Context, *domain.PatchEvent)
	for _, s := range sets {
		if s.OnFreeze != nil {
			freezes = append(freezes, s.OnFreeze)
		}
		if s.OnPatch != nil {
			patches = append(patches, s.OnPatch)
		}
	}

	out := domain.LifecycleHooks{
		OnNodeStart:    node(func(h domain.LifecycleHooks) func(context.Context, *domain.NodeEvent) { return h.OnNodeStart }),
		OnNodeComplete: node(func(h domain.LifecycleHooks) func(context.Context, *domain.NodeEvent) { return h.OnNodeComplete }),
		OnNodeRetry:    node(func(h domain.LifecycleHooks) func(context.Context, *domain.NodeEvent) { return h.OnNodeRetry }),
		OnNodeDegraded: node(func(h domain.LifecycleHooks) func(context.Context, *domain.NodeEvent) { return h.OnNodeDegraded }),
	}
	if len(freezes) > 0 {
		out.OnFreeze = func(ctx context.Context, e *domain.FreezeEvent) {
			for _, fn := range freezes {
				fn(ctx, e)
			}
		}
	}
	if len(patches) > 0 {
		out.OnPatch = func(ctx context.Context, e *domain.PatchEvent) {
			for _, fn := range patches {
				fn(ctx, e)
			}
		}
	}
	return out
}

// LogHooks writes one structured line per lifecycle event. Starts and
// completions log at debug, retries and freezes at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStart: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_start", "ko", e.KernelID, "run", e.RunID, "node", e.NodeID, "iteration", e.Iteration)
		},
		OnNodeComplete: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_complete", "ko", e.KernelID, "run", e.RunID, "node", e.NodeID, "duration", e.Duration)
		},
		OnNodeRetry: func(ctx context.Context, e *domain.NodeEvent) {
			logger.WarnContext(ctx, "node_retry", "ko", e.KernelID, "run", e.RunID, "node", e.NodeID, "attempt", e.Attempt, "error", e.Err)
		},
		OnNodeDegraded: func(ctx context.Context, e *domain.NodeEvent) {
			logger.WarnContext(ctx, "node_degraded", "ko", e.KernelID, "run", e.RunID, "node", e.NodeID, "error", e.Err)
		},
		OnFreeze: func(ctx context.Context, e *domain.FreezeEvent) {
			logger.WarnContext(ctx, "freeze", "ko", e.KernelID, "run", e.RunID, "entropy", e.Entropy, "cap", e.Cap)
		},
		OnPatch: func(ctx context.Context, e *domain.PatchEvent) {
			logger.InfoContext(ctx, "reflex_patch", "ko", e.KernelID, "run", e.RunID, "event", e.EventType, "nodes", e.Nodes)
		},
	}
}
