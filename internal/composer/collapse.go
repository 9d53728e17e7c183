// Package composer collapses clause graphs into kernel objects and merges them.
package composer

import (
	"fmt"

	"github.com/aretw0/operad/internal/resolver"
	"github.com/aretw0/operad/pkg/domain"
)

// Metadata keys written by the composer.
const (
	MetaFingerprint = "fingerprint"
	MetaNodeCount   = "node_count"
)

// Params carries the control metadata bundled into a kernel.
type Params struct {
	ID          string
	ClauseID    string
	Type        string
	Role        string
	Inputs      []string
	Yields      []string
	Loop        *domain.LoopControl
	Reflex      *domain.ReflexConfig
	Composition *domain.CompositionRules
	Schema      map[string]string
	Metadata    map[string]string
}

// CollapseToKO flattens the nodes' condition/action pairs, in DAG order, into
// one ClauseLogic and bundles it with the graph and control metadata.
// The nodes must already be topologically ordered. The result is
// deterministic: the same nodes and params always give the same kernel.
func CollapseToKO(nodes []domain.DAGNode, p Params) (*domain.KernelObject, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("kernel id is required")
	}
	if err := resolver.Validate(nodes); err != nil {
		return nil, fmt.Errorf("collapse %s: %w", p.ID, err)
	}

	ko := &domain.KernelObject{
		Format:      domain.KernelFormat,
		ID:          p.ID,
		ClauseID:    p.ClauseID,
		Type:        p.Type,
		Role:        p.Role,
		Inputs:      append([]string(nil), p.Inputs...),
		Yields:      append([]string(nil), p.Yields...),
		Loop:        p.Loop,
		Reflex:      p.Reflex,
		Composition: p.Composition,
		Schema:      p.Schema,
		Metadata:    make(map[string]string, len(p.Metadata)+2),
	}
	ko.Nodes = make([]domain.DAGNode, len(nodes))
	for i, n := range nodes {
		ko.Nodes[i] = n.Clone()
	}
	for k, v := range p.Metadata {
		ko.Metadata[k] = v
	}
	// Detach caller-owned pointers.
	ko = ko.Clone()
	seal(ko)
	return ko, nil
}

// Flatten returns the logic program of nodes in order.
func Flatten(nodes []domain.DAGNode) domain.ClauseLogic {
	logic := domain.ClauseLogic{
		Conditions: make([]domain.Condition, len(nodes)),
		Actions:    make([]domain.Action, len(nodes)),
	}
	for i, n := range nodes {
		logic.Conditions[i] = n.Clause.Condition
		logic.Actions[i] = n.Clause.Action
	}
	return logic
}

// Rebuild returns a copy of base carrying nodes in place of its graph.
// It is the single path by which an existing kernel turns into a new one.
func Rebuild(base *domain.KernelObject, nodes []domain.DAGNode) (*domain.KernelObject, error) {
	if err := resolver.Validate(nodes); err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", base.ID, err)
	}
	ko := base.Clone()
	ko.Nodes = make([]domain.DAGNode, len(nodes))
	for i, n := range nodes {
		ko.Nodes[i] = n.Clone()
	}
	if ko.Metadata == nil {
		ko.Metadata = make(map[string]string)
	}
	seal(ko)
	return ko, nil
}

// Excise returns a new kernel without nodeID. Dependents drop the reference.
func Excise(ko *domain.KernelObject, nodeID string) (*domain.KernelObject, error) {
	if _, ok := ko.Node(nodeID); !ok {
		return nil, fmt.Errorf("excise %s: node %q not found", ko.ID, nodeID)
	}
	nodes := make([]domain.DAGNode, 0, len(ko.Nodes)-1)
	for _, n := range ko.Nodes {
		if n.ID == nodeID {
			continue
		}
		n = n.Clone()
		deps := make([]string, 0, len(n.Dependencies))
		for _, d := range n.Dependencies {
			if d != nodeID {
				deps = append(deps, d)
			}
		}
		n.Dependencies = deps
		nodes = append(nodes, n)
	}
	return Rebuild(ko, nodes)
}

func seal(ko *domain.KernelObject) {
	if ko.Format == "" {
		ko.Format = domain.KernelFormat
	}
	ko.Logic = Flatten(ko.Nodes)
	ko.Metadata[MetaNodeCount] = fmt.Sprint(len(ko.Nodes))
	ko.Metadata[MetaFingerprint] = Fingerprint(ko)
}
