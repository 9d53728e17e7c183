package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/operad/internal/composer"
	"github.com/aretw0/operad/internal/resolver"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewExecutionState(runID, "ko")
		state.MarkCompleted("a")
		state.MarkCompleted("b")
		state.Iteration = 2
		state.RetryCount = 1
		state.Status = domain.StatusFrozen
		state.Outputs["summary"] = domain.String("done")
		state.Context = domain.Vars{"count": domain.Number(42), "ready": domain.Bool(true)}

		require.NoError(t, store.Save(ctx, runID, state), "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.KernelID, loaded.KernelID)
		assert.Equal(t, domain.StatusFrozen, loaded.Status)
		assert.Equal(t, []string{"a", "b"}, loaded.CompletedNodes)
		assert.True(t, loaded.IsCompleted("b"))
		assert.Equal(t, 2, loaded.Iteration)
		assert.Equal(t, 1, loaded.RetryCount)
		assert.True(t, loaded.Outputs["summary"].Equal(domain.String("done")))
		assert.True(t, loaded.Context["count"].Equal(domain.Number(42)))
		assert.True(t, loaded.Context["ready"].Equal(domain.Bool(true)))
	})

	t.Run("Loaded state is detached", func(t *testing.T) {
		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		loaded.MarkCompleted("mutated")

		again, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.False(t, again.IsCompleted("mutated"))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, runID, domain.NewExecutionState(runID, "ko")))
		require.NoError(t, store.Delete(ctx, runID), "Delete should not return error")

		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
		assert.NoError(t, store.Delete(ctx, runID), "Delete of an unknown run is a no-op")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewExecutionState(id1, "ko")))
		require.NoError(t, store.Save(ctx, id2, domain.NewExecutionState(id2, "ko")))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}

// RunKernelStoreContract verifies a KernelStore implementation.
func RunKernelStoreContract(t *testing.T, store KernelStore) {
	ctx := context.Background()
	ko := contractKernel(t, "contract-ko")

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, store.PutKernel(ctx, ko))

		got, err := store.GetKernel(ctx, ko.ID)
		require.NoError(t, err)
		assert.Equal(t, ko.ID, got.ID)
		assert.Equal(t, ko.NodeIDs(), got.NodeIDs())
		assert.Equal(t, ko.Metadata[composer.MetaFingerprint], got.Metadata[composer.MetaFingerprint])
		assert.Equal(t, ko.Loop.MaxIterations(), got.Loop.MaxIterations())
		assert.Equal(t, ko.Logic.Actions, got.Logic.Actions)
	})

	t.Run("Stored kernel is detached", func(t *testing.T) {
		got, err := store.GetKernel(ctx, ko.ID)
		require.NoError(t, err)
		got.Nodes[0].ID = "mutated"

		again, err := store.GetKernel(ctx, ko.ID)
		require.NoError(t, err)
		assert.Equal(t, ko.NodeIDs(), again.NodeIDs())
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.GetKernel(ctx, "missing-kernel")
		assert.ErrorIs(t, err, domain.ErrKernelNotFound)
	})

	t.Run("List and Delete", func(t *testing.T) {
		other := contractKernel(t, "contract-ko-2")
		require.NoError(t, store.PutKernel(ctx, other))

		ids, err := store.ListKernels(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, ko.ID)
		assert.Contains(t, ids, other.ID)

		require.NoError(t, store.DeleteKernel(ctx, other.ID))
		_, err = store.GetKernel(ctx, other.ID)
		assert.ErrorIs(t, err, domain.ErrKernelNotFound)
		assert.NoError(t, store.DeleteKernel(ctx, other.ID))
	})
}

func contractKernel(t *testing.T, id string) *domain.KernelObject {
	t.Helper()
	nodes, err := resolver.BuildDAG([]domain.ClauseInput{
		{ID: "check", Text: `WHEN calendar.ready == true THEN set(slot, "morning")`},
		{ID: "book", Text: `WHEN slot == "morning" THEN trigger(booked)`, DependsOn: []string{"check"}},
	})
	require.NoError(t, err)
	ko, err := composer.CollapseToKO(nodes, composer.Params{
		ID:   id,
		Loop: &domain.LoopControl{Bounds: 4, ExitConditions: []string{"trigger.booked == true"}},
	})
	require.NoError(t, err)
	return ko
}
