package cli

import (
	"context"
	"log/slog"

	"github.com/aretw0/operad"
	"github.com/aretw0/operad/pkg/adapters/loam"
	"github.com/aretw0/operad/pkg/domain"
)

// WatchLibrary recompiles a clause library every time it changes and hands
// each result to onChange, starting with the current contents. It returns
// when ctx is done.
func WatchLibrary(ctx context.Context, dir, id string, logger *slog.Logger, onChange func(*domain.KernelObject, error)) error {
	loader, err := loam.Open(dir)
	if err != nil {
		return err
	}
	eng := operad.New(operad.WithClauseSource(loader), operad.WithLogger(logger))

	changes, err := loader.Watch(ctx)
	if err != nil {
		return err
	}
	onChange(eng.CompileSource(ctx, id))
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			logger.Info("library changed, recompiling", "dir", dir)
			onChange(eng.CompileSource(ctx, id))
		}
	}
}
