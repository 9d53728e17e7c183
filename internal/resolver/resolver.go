// Package resolver builds validated, topologically ordered clause graphs.
package resolver

import (
	"fmt"
	"sort"

	"github.com/aretw0/operad/internal/compiler"
	"github.com/aretw0/operad/pkg/domain"
)

// BuildDAG parses every clause input and orders the nodes by their declared
// dependencies. It never returns a partial graph: any syntax error, duplicate
// id, unknown dependency or cycle fails the whole build.
func BuildDAG(inputs []domain.ClauseInput) ([]domain.DAGNode, error) {
	nodes, err := parseInputs(inputs)
	if err != nil {
		return nil, err
	}
	for i, in := range inputs {
		nodes[i].Dependencies = dedupe(in.DependsOn, "")
	}
	return TopologicalSort(nodes)
}

// BuildDAGFromYields infers dependencies from symbol flow: a node depends on
// every node that outputs a symbol it lists as input. Explicit DependsOn
// entries are added on top; self-dependencies are dropped.
//
// kernelInputs names symbols supplied by the run context. When it is non-nil,
// a node input that no node produces must appear in it. Every symbol in
// yields must be produced by some node.
func BuildDAGFromYields(inputs []domain.ClauseInput, yields, kernelInputs []string) ([]domain.DAGNode, error) {
	nodes, err := parseInputs(inputs)
	if err != nil {
		return nil, err
	}

	producers := make(map[string][]string)
	for _, in := range inputs {
		for _, sym := range in.Outputs {
			producers[sym] = append(producers[sym], in.ID)
		}
	}
	external := make(map[string]bool, len(kernelInputs))
	for _, sym := range kernelInputs {
		external[sym] = true
	}

	for i, in := range inputs {
		var deps []string
		for _, sym := range in.Inputs {
			ps, ok := producers[sym]
			if !ok && kernelInputs != nil && !external[sym] {
				return nil, &domain.MissingDependencyError{NodeID: in.ID, DepID: sym}
			}
			deps = append(deps, ps...)
		}
		deps = append(deps, in.DependsOn...)
		nodes[i].Dependencies = dedupe(deps, in.ID)
	}

	for _, sym := range yields {
		if _, ok := producers[sym]; !ok {
			return nil, fmt.Errorf("yield %q has no producer: %w", sym, domain.ErrMissingDependency)
		}
	}
	return TopologicalSort(nodes)
}

// TopologicalSort orders nodes so that no node precedes its dependencies.
// It walks the graph depth first in input order and emits nodes in post-order,
// so ties keep their original relative order. A back-edge fails immediately
// with a *domain.CyclicDependencyError.
func TopologicalSort(nodes []domain.DAGNode) ([]domain.DAGNode, error) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.ID]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateNode, n.ID)
		}
		index[n.ID] = i
	}
	for _, n := range nodes {
		for _, dep := range n.Dependencies {
			if _, ok := index[dep]; !ok {
				return nil, &domain.MissingDependencyError{NodeID: n.ID, DepID: dep}
			}
		}
	}

	visited := make([]bool, len(nodes))
	onStack := make([]bool, len(nodes))
	var stack []string
	order := make([]domain.DAGNode, 0, len(nodes))

	var visit func(i int) error
	visit = func(i int) error {
		visited[i] = true
		onStack[i] = true
		stack = append(stack, nodes[i].ID)

		for _, dep := range sortedByIndex(nodes[i].Dependencies, index) {
			j := index[dep]
			if onStack[j] {
				return &domain.CyclicDependencyError{NodeID: nodes[i].ID, Path: cyclePath(stack, dep)}
			}
			if visited[j] {
				continue
			}
			if err := visit(j); err != nil {
				return err
			}
		}

		onStack[i] = false
		stack = stack[:len(stack)-1]
		order = append(order, nodes[i])
		return nil
	}

	for i := range nodes {
		if visited[i] {
			continue
		}
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Validate checks that nodes form a graph BuildDAG could have produced:
// unique ids, resolvable dependencies, no cycles, and dependencies listed
// before their dependents.
func Validate(nodes []domain.DAGNode) error {
	if _, err := TopologicalSort(nodes); err != nil {
		return err
	}
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		for _, dep := range n.Dependencies {
			if !seen[dep] {
				return fmt.Errorf("node %q listed before its dependency %q: %w", n.ID, dep, domain.ErrInvalidKernel)
			}
		}
		seen[n.ID] = true
	}
	return nil
}

func parseInputs(inputs []domain.ClauseInput) ([]domain.DAGNode, error) {
	nodes := make([]domain.DAGNode, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		if in.ID == "" {
			return nil, fmt.Errorf("clause input %d has no id", i)
		}
		if seen[in.ID] {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateNode, in.ID)
		}
		seen[in.ID] = true

		clause, err := compiler.Parse(in.ID, in.Text)
		if err != nil {
			return nil, fmt.Errorf("clause %q: %w", in.ID, err)
		}
		clause.Description = in.Description
		nodes[i] = domain.DAGNode{
			ID:      in.ID,
			Clause:  clause,
			Inputs:  append([]string(nil), in.Inputs...),
			Outputs: append([]string(nil), in.Outputs...),
		}
	}
	return nodes, nil
}

// dedupe keeps first occurrences and drops references to self. Never nil.
func dedupe(ids []string, self string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == self || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func sortedByIndex(ids []string, index map[string]int) []string {
	out := append([]string(nil), ids...)
	sort.SliceStable(out, func(a, b int) bool { return index[out[a]] < index[out[b]] })
	return out
}

func cyclePath(stack []string, back string) []string {
	for i, id := range stack {
		if id == back {
			path := append([]string(nil), stack[i:]...)
			return append(path, back)
		}
	}
	return []string{back}
}
