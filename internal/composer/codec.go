package composer

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/operad/internal/compiler"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/schema"
)

// Encode serializes a kernel into its re-loadable document form.
func Encode(ko *domain.KernelObject) ([]byte, error) {
	out := ko.Clone()
	if out.Format == "" {
		out.Format = domain.KernelFormat
	}
	return json.MarshalIndent(out, "", "  ")
}

// Decode loads a kernel document. Documents are untrusted: every clause is
// re-parsed from its raw text, the graph is re-validated, the logic is
// re-flattened and a recorded fingerprint must match the content.
func Decode(data []byte) (*domain.KernelObject, error) {
	var ko domain.KernelObject
	if err := json.Unmarshal(data, &ko); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidKernel, err)
	}
	if ko.Format != domain.KernelFormat {
		return nil, fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidKernel, ko.Format)
	}
	if ko.ID == "" {
		return nil, fmt.Errorf("%w: missing id", domain.ErrInvalidKernel)
	}

	for i, n := range ko.Nodes {
		clause, err := compiler.Parse(n.ID, n.Clause.Raw)
		if err != nil {
			return nil, fmt.Errorf("%w: node %q: %w", domain.ErrInvalidKernel, n.ID, err)
		}
		clause.Description = n.Clause.Description
		ko.Nodes[i].Clause = clause
		if ko.Nodes[i].Dependencies == nil {
			ko.Nodes[i].Dependencies = []string{}
		}
	}
	if ko.Reflex != nil {
		for id, rc := range ko.Reflex.Clauses {
			if _, err := compiler.Parse(id, rc.Text); err != nil {
				return nil, fmt.Errorf("%w: reflex clause %q: %w", domain.ErrInvalidKernel, id, err)
			}
		}
	}
	if ko.Loop != nil {
		for _, text := range ko.Loop.ExitConditions {
			if _, err := compiler.ParseCondition(text); err != nil {
				return nil, fmt.Errorf("%w: exit condition %q: %w", domain.ErrInvalidKernel, text, err)
			}
		}
	}

	if _, err := schema.ParseTypeMap(ko.Schema); err != nil {
		return nil, fmt.Errorf("%w: schema: %w", domain.ErrInvalidKernel, err)
	}

	recorded := ko.Metadata[MetaFingerprint]
	rebuilt, err := Rebuild(&ko, ko.Nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidKernel, err)
	}
	if recorded != "" && recorded != rebuilt.Metadata[MetaFingerprint] {
		return nil, fmt.Errorf("%w: fingerprint mismatch", domain.ErrInvalidKernel)
	}
	return rebuilt, nil
}
