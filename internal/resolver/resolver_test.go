package resolver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/operad/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func in(id string, deps ...string) domain.ClauseInput {
	return domain.ClauseInput{ID: id, Text: `WHEN ready == true THEN ` + id, DependsOn: deps}
}

func ids(nodes []domain.DAGNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func assertTopological(t *testing.T, nodes []domain.DAGNode) {
	t.Helper()
	pos := make(map[string]int, len(nodes))
	for i, n := range nodes {
		pos[n.ID] = i
	}
	for _, n := range nodes {
		for _, d := range n.Dependencies {
			assert.Less(t, pos[d], pos[n.ID], "%s must come after %s", n.ID, d)
		}
	}
}

func TestBuildDAG_Orders(t *testing.T) {
	tests := []struct {
		name   string
		inputs []domain.ClauseInput
		want   []string
	}{
		{"independent keep input order", []domain.ClauseInput{in("c"), in("a"), in("b")}, []string{"c", "a", "b"}},
		{"chain declared backwards", []domain.ClauseInput{in("c", "b"), in("b", "a"), in("a")}, []string{"a", "b", "c"}},
		{"diamond", []domain.ClauseInput{in("d", "b", "c"), in("b", "a"), in("c", "a"), in("a")}, []string{"a", "b", "c", "d"}},
		{"deps visited in input order", []domain.ClauseInput{in("x"), in("z", "y", "x"), in("y")}, []string{"x", "y", "z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := BuildDAG(tt.inputs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(nodes))
			assertTopological(t, nodes)
		})
	}
}

func TestBuildDAG_Deterministic(t *testing.T) {
	inputs := []domain.ClauseInput{in("e", "a"), in("d", "b"), in("c"), in("b", "c"), in("a", "c")}
	first, err := BuildDAG(inputs)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := BuildDAG(inputs)
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(again))
	}
}

func TestBuildDAG_LargeAcyclic(t *testing.T) {
	var inputs []domain.ClauseInput
	for i := 49; i >= 0; i-- {
		var deps []string
		if i > 0 {
			deps = append(deps, fmt.Sprintf("n%d", i-1))
		}
		if i > 3 {
			deps = append(deps, fmt.Sprintf("n%d", i/2))
		}
		inputs = append(inputs, in(fmt.Sprintf("n%d", i), deps...))
	}
	nodes, err := BuildDAG(inputs)
	require.NoError(t, err)
	assert.Len(t, nodes, 50)
	assertTopological(t, nodes)
}

func TestBuildDAG_Errors(t *testing.T) {
	t.Run("missing dependency", func(t *testing.T) {
		nodes, err := BuildDAG([]domain.ClauseInput{in("a", "ghost")})
		assert.Nil(t, nodes)
		var md *domain.MissingDependencyError
		require.ErrorAs(t, err, &md)
		assert.Equal(t, "a", md.NodeID)
		assert.Equal(t, "ghost", md.DepID)
	})

	t.Run("cycle", func(t *testing.T) {
		nodes, err := BuildDAG([]domain.ClauseInput{in("a", "c"), in("b", "a"), in("c", "b")})
		assert.Nil(t, nodes)
		assert.True(t, errors.Is(err, domain.ErrCyclicDependency))
		var cd *domain.CyclicDependencyError
		require.ErrorAs(t, err, &cd)
		assert.Equal(t, []string{"a", "c", "b", "a"}, cd.Path)
	})

	t.Run("self loop", func(t *testing.T) {
		_, err := BuildDAG([]domain.ClauseInput{in("a", "a")})
		assert.ErrorIs(t, err, domain.ErrCyclicDependency)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := BuildDAG([]domain.ClauseInput{in("a"), in("a")})
		assert.ErrorIs(t, err, domain.ErrDuplicateNode)
	})

	t.Run("syntax error blocks the build", func(t *testing.T) {
		_, err := BuildDAG([]domain.ClauseInput{in("a"), {ID: "b", Text: "THEN nothing"}})
		assert.ErrorIs(t, err, domain.ErrSyntax)
	})
}

func TestBuildDAGFromYields(t *testing.T) {
	inputs := []domain.ClauseInput{
		{ID: "B", Text: `WHEN x == 1 THEN use_x`, Inputs: []string{"x"}},
		{ID: "A", Text: `WHEN ready == true THEN set(x, 1)`, Outputs: []string{"x"}},
	}
	nodes, err := BuildDAGFromYields(inputs, []string{"x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids(nodes))
	assert.Equal(t, []string{"A"}, nodes[1].Dependencies)
	assert.Empty(t, nodes[0].Dependencies)
}

func TestBuildDAGFromYields_OrderIndependent(t *testing.T) {
	a := domain.ClauseInput{ID: "A", Text: `WHEN ready == true THEN produce`, Outputs: []string{"x"}}
	b := domain.ClauseInput{ID: "B", Text: `WHEN x == 1 THEN consume`, Inputs: []string{"x"}, Outputs: []string{"y"}}
	c := domain.ClauseInput{ID: "C", Text: `WHEN y == 1 THEN finish`, Inputs: []string{"y"}}

	for _, perm := range [][]domain.ClauseInput{{a, b, c}, {c, b, a}, {b, c, a}} {
		nodes, err := BuildDAGFromYields(perm, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, ids(nodes))
	}
}

func TestBuildDAGFromYields_StripsSelfAndMergesExplicit(t *testing.T) {
	inputs := []domain.ClauseInput{
		{ID: "counter", Text: `WHEN n < 3 THEN inc`, Inputs: []string{"n"}, Outputs: []string{"n"}},
		{ID: "log", Text: `WHEN n >= 0 THEN log`, Inputs: []string{"n"}, DependsOn: []string{"setup"}},
		{ID: "setup", Text: `WHEN ready == true THEN setup`},
	}
	nodes, err := BuildDAGFromYields(inputs, nil, nil)
	require.NoError(t, err)
	byID := map[string]domain.DAGNode{}
	for _, n := range nodes {
		byID[n.ID] = n
	}
	assert.Empty(t, byID["counter"].Dependencies)
	assert.Equal(t, []string{"counter", "setup"}, byID["log"].Dependencies)
	assertTopological(t, nodes)
}

func TestBuildDAGFromYields_Errors(t *testing.T) {
	consumer := domain.ClauseInput{ID: "B", Text: `WHEN x == 1 THEN go`, Inputs: []string{"x", "ext"}}
	producer := domain.ClauseInput{ID: "A", Text: `WHEN ready == true THEN go`, Outputs: []string{"x"}}

	_, err := BuildDAGFromYields([]domain.ClauseInput{consumer, producer}, nil, []string{"ext"})
	assert.NoError(t, err)

	_, err = BuildDAGFromYields([]domain.ClauseInput{consumer, producer}, nil, []string{})
	var md *domain.MissingDependencyError
	require.ErrorAs(t, err, &md)
	assert.Equal(t, "ext", md.DepID)

	_, err = BuildDAGFromYields([]domain.ClauseInput{producer}, []string{"never"}, nil)
	assert.ErrorIs(t, err, domain.ErrMissingDependency)

	cyc := []domain.ClauseInput{
		{ID: "P", Text: `WHEN a == 1 THEN p`, Inputs: []string{"a"}, Outputs: []string{"b"}},
		{ID: "Q", Text: `WHEN b == 1 THEN q`, Inputs: []string{"b"}, Outputs: []string{"a"}},
	}
	_, err = BuildDAGFromYields(cyc, nil, nil)
	assert.ErrorIs(t, err, domain.ErrCyclicDependency)
}

func TestValidate(t *testing.T) {
	nodes, err := BuildDAG([]domain.ClauseInput{in("a"), in("b", "a")})
	require.NoError(t, err)
	assert.NoError(t, Validate(nodes))

	reversed := []domain.DAGNode{nodes[1], nodes[0]}
	assert.ErrorIs(t, Validate(reversed), domain.ErrInvalidKernel)
}
