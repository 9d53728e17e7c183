package tests

import (
	"context"
	"testing"

	"github.com/aretw0/operad/pkg/ports"
)

// ClauseSourceContractTest is a reusable test suite that verifies if an adapter complies with ports.ClauseSource.
func ClauseSourceContractTest(t *testing.T, source ports.ClauseSource, setupData map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetClause_Success", func(t *testing.T) {
		for id, text := range setupData {
			in, err := source.GetClause(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error getting clause %s: %v", id, err)
			}
			if in.ID != id {
				t.Errorf("id mismatch: got %q, want %q", in.ID, id)
			}
			if in.Text != text {
				t.Errorf("text mismatch for %s. got %q, want %q", id, in.Text, text)
			}
		}
	})

	t.Run("GetClause_NotFound", func(t *testing.T) {
		_, err := source.GetClause(ctx, "non-existent-clause")
		if err == nil {
			t.Error("expected error for non-existent clause, got nil")
		}
	})

	t.Run("ListClauses", func(t *testing.T) {
		ids, err := source.ListClauses(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing clauses: %v", err)
		}
		if len(ids) != len(setupData) {
			t.Errorf("expected %d clauses, got %d", len(setupData), len(ids))
		}
		for i := 1; i < len(ids); i++ {
			if ids[i-1] > ids[i] {
				t.Errorf("clause ids not sorted: %v", ids)
				break
			}
		}
		lookup := make(map[string]bool)
		for _, id := range ids {
			lookup[id] = true
		}
		for id := range setupData {
			if !lookup[id] {
				t.Errorf("clause %s missing from list", id)
			}
		}
	})
}
