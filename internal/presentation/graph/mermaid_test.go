package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/operad/internal/compiler"
	"github.com/aretw0/operad/internal/presentation/graph"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func node(id, text string, deps ...string) domain.DAGNode {
	return domain.DAGNode{ID: id, Clause: compiler.MustParse(id, text), Dependencies: deps}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		ko       *domain.KernelObject
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name: "shapes by action",
			ko: &domain.KernelObject{Nodes: []domain.DAGNode{
				node("s", "WHEN a == 1 THEN set(b, 2)"),
				node("t", "WHEN b == 2 THEN trigger(done)", "s"),
				node("c", "WHEN b == 2 THEN notify(b)", "s"),
			}},
			contains: []string{
				`s["s <br/> a == 1"]`,
				`t{{"t <br/> b == 2"}}`,
				`c[["c <br/> b == 2"]]`,
				"s --> t",
				"s --> c",
			},
			excludes: []string{"classDef"},
		},
		{
			name: "required nodes",
			ko: &domain.KernelObject{
				Nodes:       []domain.DAGNode{node("core", "WHEN a == 1 THEN set(b, 2)")},
				Composition: &domain.CompositionRules{Required: []string{"core"}},
			},
			contains: []string{`core[("core <br/> a == 1")]`},
		},
		{
			name: "id sanitization",
			ko: &domain.KernelObject{Nodes: []domain.DAGNode{
				{ID: "path/to.clause"},
				{ID: "notify@e-1", Dependencies: []string{"path/to.clause"}},
			}},
			contains: []string{`path_to_clause["path/to.clause"]`, "path_to_clause --> notify_at_e_1"},
		},
		{
			name: "string literals are quoted safely",
			ko: &domain.KernelObject{Nodes: []domain.DAGNode{
				node("q", `WHEN mode == "focus" THEN set(b, 2)`),
			}},
			contains: []string{`q["q <br/> mode == 'focus'"]`},
		},
		{
			name: "reflex triggers",
			ko: &domain.KernelObject{
				Nodes: []domain.DAGNode{node("a", "WHEN a == 1 THEN set(b, 2)")},
				Reflex: &domain.ReflexConfig{
					TriggerMap: map[string]string{"meeting_added": "notify", "conflict": "a"},
					Clauses: map[string]domain.ReflexClause{
						"notify": {ID: "notify", Text: "WHEN b == 2 THEN set(n, true)"},
						"a":      {ID: "a", Text: "WHEN a == 2 THEN set(b, 3)", Mode: domain.PatchReplace},
					},
				},
			},
			contains: []string{
				`ev_meeting_added>"⚡ meeting_added"]`,
				`ev_meeting_added -. "append" .-> notify`,
				`ev_conflict -. "replace" .-> a`,
			},
		},
		{
			name: "overlay",
			ko: &domain.KernelObject{Nodes: []domain.DAGNode{
				node("a", "WHEN x == 1 THEN set(y, 1)"),
				node("b", "WHEN y == 1 THEN set(z, 1)", "a"),
				node("c", "WHEN z == 1 THEN set(w, 1)", "b"),
			}},
			overlay: &graph.Overlay{Completed: []string{"a", "a"}, Excised: []string{"b"}, Current: "c"},
			contains: []string{
				"classDef completed",
				"class a completed;\n    class b excised;",
				"class b excised;",
				"class c current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.ko, tt.overlay)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestOverlayFromState(t *testing.T) {
	assert.Nil(t, graph.OverlayFromState(nil))

	s := domain.NewExecutionState("r", "k")
	s.CompletedNodes = []string{"a"}
	s.Excised = []string{"b"}
	s.CurrentNodeID = "c"
	assert.Equal(t, &graph.Overlay{Completed: []string{"a"}, Excised: []string{"b"}, Current: "c"}, graph.OverlayFromState(s))
}
