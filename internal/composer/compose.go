package composer

import (
	"fmt"
	"math"

	"github.com/aretw0/operad/pkg/domain"
)

// ComposeSeparator joins kernel ids in a composed id.
const ComposeSeparator = "∘"

// Compose merges two kernels into a new one. The operation is associative:
// Compose(Compose(a, b), c) equals Compose(a, Compose(b, c)).
//
// Nodes are the ordered union of a's nodes followed by b's; a node id present
// in both must carry an identical node. Inputs, yields, required nodes and
// exit conditions are ordered unions. Reflex maps merge left-biased. Loop
// bounds and retry limits take the larger value, the entropy cap the smaller.
func Compose(a, b *domain.KernelObject) (*domain.KernelObject, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("compose: nil kernel")
	}

	nodes := make([]domain.DAGNode, 0, len(a.Nodes)+len(b.Nodes))
	byID := make(map[string]domain.DAGNode, len(a.Nodes))
	for _, n := range a.Nodes {
		byID[n.ID] = n
		nodes = append(nodes, n.Clone())
	}
	for _, n := range b.Nodes {
		if prev, ok := byID[n.ID]; ok {
			if !sameNode(prev, n) {
				return nil, fmt.Errorf("compose %s with %s: %w: %s", a.ID, b.ID, domain.ErrDuplicateNode, n.ID)
			}
			continue
		}
		byID[n.ID] = n
		nodes = append(nodes, n.Clone())
	}

	merged := &domain.KernelObject{
		Format:      domain.KernelFormat,
		ID:          a.ID + ComposeSeparator + b.ID,
		ClauseID:    first(a.ClauseID, b.ClauseID),
		Type:        first(a.Type, b.Type),
		Role:        first(a.Role, b.Role),
		Inputs:      union(a.Inputs, b.Inputs),
		Yields:      union(a.Yields, b.Yields),
		Loop:        mergeLoop(a.Loop, b.Loop),
		Reflex:      mergeReflex(a.Reflex, b.Reflex),
		Composition: mergeComposition(a, b),
		Metadata:    make(map[string]string),
	}
	for k, v := range b.Metadata {
		merged.Metadata[k] = v
	}
	for _, src := range []map[string]string{b.Schema, a.Schema} {
		for k, v := range src {
			if merged.Schema == nil {
				merged.Schema = make(map[string]string)
			}
			merged.Schema[k] = v
		}
	}
	for k, v := range a.Metadata {
		merged.Metadata[k] = v
	}
	return Rebuild(merged, nodes)
}

// ComposeAll folds kernels left to right.
func ComposeAll(kos ...*domain.KernelObject) (*domain.KernelObject, error) {
	if len(kos) == 0 {
		return nil, fmt.Errorf("compose: no kernels")
	}
	acc := kos[0].Clone()
	for _, ko := range kos[1:] {
		next, err := Compose(acc, ko)
		if err != nil {
			return nil, err
		}
		acc = next
	}
	return acc, nil
}

func sameNode(x, y domain.DAGNode) bool {
	return x.Clause.Raw == y.Clause.Raw &&
		equalStrings(x.Dependencies, y.Dependencies) &&
		equalStrings(x.Inputs, y.Inputs) &&
		equalStrings(x.Outputs, y.Outputs)
}

func mergeLoop(a, b *domain.LoopControl) *domain.LoopControl {
	if a == nil && b == nil {
		return nil
	}
	var za, zb domain.LoopControl
	if a == nil {
		a = &za
	}
	if b == nil {
		b = &zb
	}
	retries := max(a.Retries(), b.Retries())
	if retries == 0 {
		retries = -1
	}
	return &domain.LoopControl{
		Bounds:         max(a.MaxIterations(), b.MaxIterations()),
		EntropyCap:     math.Min(a.Cap(), b.Cap()),
		RetryLimit:     retries,
		ExitConditions: union(a.ExitConditions, b.ExitConditions),
	}
}

func mergeReflex(a, b *domain.ReflexConfig) *domain.ReflexConfig {
	if a == nil && b == nil {
		return nil
	}
	out := &domain.ReflexConfig{}
	for _, rc := range []*domain.ReflexConfig{b, a} {
		if rc == nil {
			continue
		}
		for ev, id := range rc.TriggerMap {
			if out.TriggerMap == nil {
				out.TriggerMap = make(map[string]string)
			}
			out.TriggerMap[ev] = id
		}
		for id, c := range rc.Clauses {
			if out.Clauses == nil {
				out.Clauses = make(map[string]domain.ReflexClause)
			}
			c.Outputs = append([]string(nil), c.Outputs...)
			out.Clauses[id] = c
		}
	}
	return out
}

func mergeComposition(a, b *domain.KernelObject) *domain.CompositionRules {
	var reqA, reqB []string
	if a.Composition != nil {
		reqA = a.Composition.Required
	}
	if b.Composition != nil {
		reqB = b.Composition.Required
	}
	return &domain.CompositionRules{
		Required: union(reqA, reqB),
		Lineage:  append(lineage(a), lineage(b)...),
	}
}

func lineage(ko *domain.KernelObject) []string {
	if ko.Composition != nil && len(ko.Composition.Lineage) > 0 {
		return append([]string(nil), ko.Composition.Lineage...)
	}
	return []string{ko.ID}
}

func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func first(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
