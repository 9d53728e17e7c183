package governor

import (
	"sync"
	"testing"
	"time"

	"github.com/aretw0/operad/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func TestRecord_MovingAverage(t *testing.T) {
	g := New(WithClock(fixedClock()))

	m, err := g.Record(domain.ChurnReshuffleAll, 5, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, m.Entropy, 1e-9) // 0.3 * 0.5
	assert.InDelta(t, 0.5, m.CumulativeEntropy, 1e-9)

	m, err = g.Record(domain.ChurnLocalAdapt, 10, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.3*0.1+0.7*0.15, m.Entropy, 1e-9)
	assert.InDelta(t, 0.6, m.CumulativeEntropy, 1e-9)

	hist := g.History()
	require.Len(t, hist, 2)
	assert.Equal(t, domain.ChurnLocalAdapt, hist[1].Action)
	assert.Equal(t, 10, hist[1].TotalBlocks)
}

func TestRecord_Validation(t *testing.T) {
	g := New()
	_, err := g.Record(domain.ChurnInsert, 1, 0)
	assert.Error(t, err)
	_, err = g.Record(domain.ChurnInsert, -1, 4)
	assert.Error(t, err)
	_, err = g.Record("teleport", 1, 4)
	assert.Error(t, err)

	m, err := g.Record(domain.ChurnInsert, 9, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, m.AffectedBlocks, "affected is clamped to total")
}

func TestShouldFreeze(t *testing.T) {
	ko := &domain.KernelObject{Loop: &domain.LoopControl{EntropyCap: 0.22}}
	assert.True(t, ShouldFreeze(ko, 0.3))
	assert.False(t, ShouldFreeze(ko, 0.22))
	assert.False(t, ShouldFreeze(nil, 0.1))
	assert.True(t, ShouldFreeze(&domain.KernelObject{}, 0.23), "default cap applies")
}

func TestCheck_FreezesOnAccumulatedChurn(t *testing.T) {
	g := New()
	ko := &domain.KernelObject{Loop: &domain.LoopControl{EntropyCap: 0.22}}

	_, err := g.Record(domain.ChurnReshuffleAll, 1, 10)
	require.NoError(t, err)
	freeze, acc := g.Check(ko)
	assert.False(t, freeze)
	assert.InDelta(t, 0.1, acc, 1e-9)

	_, err = g.Record(domain.ChurnReshuffleAll, 2, 10)
	require.NoError(t, err)
	freeze, acc = g.Check(ko)
	assert.True(t, freeze)
	assert.InDelta(t, 0.3, acc, 1e-9)
}

func TestCheck_LocalAdaptationsAccumulate(t *testing.T) {
	g := New()
	ko := &domain.KernelObject{}

	for i := 0; i < 2; i++ {
		_, err := g.Record(domain.ChurnLocalAdapt, 1, 1)
		require.NoError(t, err)
	}
	freeze, _ := g.Check(ko)
	assert.False(t, freeze)

	_, err := g.Record(domain.ChurnLocalAdapt, 1, 1)
	require.NoError(t, err)
	freeze, acc := g.Check(ko)
	assert.True(t, freeze, "repeated small patches add up past the default cap")
	assert.InDelta(t, 0.3, acc, 1e-9)
	assert.Less(t, g.Entropy(), 0.22, "the moving average alone would not have frozen")
}

func TestDecide(t *testing.T) {
	ko := &domain.KernelObject{}
	g := New()
	_, err := g.Record(domain.ChurnReshuffleAll, 3, 10)
	require.NoError(t, err)

	freeze, _ := g.Check(ko)
	require.True(t, freeze)

	t.Run("continue rebases without forgetting", func(t *testing.T) {
		require.NoError(t, g.Decide(domain.DecisionContinue))
		freeze, acc := g.Check(ko)
		assert.False(t, freeze)
		assert.Zero(t, acc)
		assert.InDelta(t, 0.3, g.Cumulative(), 1e-9)
		assert.Len(t, g.History(), 1)
	})

	t.Run("freeze holds", func(t *testing.T) {
		require.NoError(t, g.Decide(domain.DecisionFreeze))
		freeze, _ := g.Check(ko)
		assert.True(t, freeze)
		assert.True(t, g.Frozen())
		req := DecisionRequest(ko, g.Accumulated())
		assert.Contains(t, req.Reason, "freeze decision")
	})

	t.Run("reset clears", func(t *testing.T) {
		require.NoError(t, g.Decide(domain.DecisionReset))
		freeze, _ := g.Check(ko)
		assert.False(t, freeze)
		assert.Zero(t, g.Entropy())
		assert.Empty(t, g.History())
	})

	assert.Error(t, g.Decide("maybe"))
}

func TestNoAutoDecay(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	g := New(WithClock(func() time.Time { return now }))
	_, err := g.Record(domain.ChurnReshuffleAll, 3, 10)
	require.NoError(t, err)
	now = now.Add(30 * 24 * time.Hour)
	assert.InDelta(t, 0.3, g.Accumulated(), 1e-9)
}

func TestSnapshotRestore(t *testing.T) {
	g := New()
	_, err := g.Record(domain.ChurnInsert, 2, 4)
	require.NoError(t, err)
	require.NoError(t, g.Decide(domain.DecisionFreeze))

	other := New()
	other.Restore(g.Snapshot())
	assert.Equal(t, g.Snapshot(), other.Snapshot())
	assert.True(t, other.Frozen())
}

func TestDecisionRequest(t *testing.T) {
	req := DecisionRequest(&domain.KernelObject{Loop: &domain.LoopControl{EntropyCap: 0.22}}, 0.3)
	assert.Equal(t, 0.22, req.Cap)
	assert.Equal(t, 0.3, req.Entropy)
	assert.Contains(t, req.Reason, "exceeds cap")
	assert.Equal(t, []domain.Decision{domain.DecisionContinue, domain.DecisionFreeze, domain.DecisionReset}, req.Options)
}

func TestGovernor_ConcurrentRecord(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = g.Record(domain.ChurnInsert, 1, 1)
			g.Check(nil)
		}()
	}
	wg.Wait()
	assert.Len(t, g.History(), 50)
	assert.InDelta(t, 2.5, g.Cumulative(), 1e-9)
}
