package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/ports"
)

// Mask replaces the value of a masked variable.
const Mask = "***"

type piiMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks context and output
// variables whose names match any of the patterns before they are stored.
// The in-memory state of the run is left untouched, so a masked run
// resumes with the masked values.
func NewPIIMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("mask pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, runID string, state *domain.ExecutionState) error {
	cloned := state.Clone()
	cloned.Context = m.mask(state.Context)
	cloned.Outputs = m.mask(state.Outputs)
	return m.next.Save(ctx, runID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, runID string) (*domain.ExecutionState, error) {
	return m.next.Load(ctx, runID)
}

func (m *piiMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) mask(vars domain.Vars) domain.Vars {
	if vars == nil {
		return nil
	}
	out := vars.Clone()
	for k := range out {
		for _, p := range m.patterns {
			if p.MatchString(k) {
				out[k] = domain.String(Mask)
				break
			}
		}
	}
	return out
}
