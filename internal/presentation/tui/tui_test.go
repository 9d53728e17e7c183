package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/operad/internal/compiler"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleKernel() *domain.KernelObject {
	return &domain.KernelObject{
		ID:   "focus",
		Type: "routine",
		Nodes: []domain.DAGNode{
			{ID: "check", Clause: compiler.MustParse("check", "WHEN calendar.conflicts > 1 THEN trigger(focus)")},
			{ID: "focus", Clause: compiler.MustParse("focus", "WHEN trigger.focus == true THEN set(mode, 1)"), Dependencies: []string{"check"}},
		},
		Loop: &domain.LoopControl{ExitConditions: []string{"mode == 1"}},
		Reflex: &domain.ReflexConfig{
			TriggerMap: map[string]string{"meeting_added": "notify"},
			Clauses:    map[string]domain.ReflexClause{"notify": {ID: "notify", Text: "WHEN mode == 1 THEN set(n, true)"}},
		},
		Composition: &domain.CompositionRules{Required: []string{"check"}},
		Schema:      map[string]string{"calendar.conflicts": "int"},
	}
}

func TestExplain(t *testing.T) {
	state := domain.NewExecutionState("run-1", "focus")
	state.MarkCompleted("check")
	state.Status = domain.StatusFrozen

	md := Explain(sampleKernel(), state)

	assert.Contains(t, md, "# Kernel `focus`")
	assert.Contains(t, md, "| 1 | ✓ check (required) | `calendar.conflicts > 1` | `trigger(focus)` | - |")
	assert.Contains(t, md, "| 2 | focus | `trigger.focus == true` | `set(mode, 1)` | `check` |")
	assert.Contains(t, md, "- Max iterations: 10")
	assert.Contains(t, md, "- Exit when: `mode == 1`")
	assert.Contains(t, md, "- `calendar.conflicts`: int")
	assert.Contains(t, md, "- `meeting_added` → append `notify`")
	assert.Contains(t, md, "Run `run-1` is **frozen**")
}

func TestExplain_NoState(t *testing.T) {
	md := Explain(sampleKernel(), nil)
	assert.NotContains(t, md, "## Run")
	assert.NotContains(t, md, "✓")
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer("notty", 80)
	require.NoError(t, err)

	out, err := render(Explain(sampleKernel(), nil))
	require.NoError(t, err)
	assert.Contains(t, out, "Kernel")
	assert.Contains(t, out, "meeting_added")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0")
	assert.Contains(t, buf.String(), "v0.1.0")
	assert.Contains(t, Status(&buf, "completed"), "completed")
}
