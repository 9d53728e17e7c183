package memory

import (
	"context"
	"fmt"

	"github.com/aretw0/operad/pkg/domain"
)

// Loader implements ports.ClauseSource using an in-memory map.
type Loader struct {
	clauses map[string]domain.ClauseInput
}

// NewLoader creates a loader from raw clause texts keyed by id.
func NewLoader(data map[string]string) *Loader {
	clauses := make(map[string]domain.ClauseInput, len(data))
	for id, text := range data {
		clauses[id] = domain.ClauseInput{ID: id, Text: text}
	}
	return &Loader{clauses: clauses}
}

// NewFromInputs creates a loader from full clause inputs (dependencies, yields).
func NewFromInputs(inputs ...domain.ClauseInput) (*Loader, error) {
	clauses := make(map[string]domain.ClauseInput, len(inputs))
	for _, in := range inputs {
		if in.ID == "" {
			return nil, fmt.Errorf("clause missing ID")
		}
		if _, dup := clauses[in.ID]; dup {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateNode, in.ID)
		}
		clauses[in.ID] = in
	}
	return &Loader{clauses: clauses}, nil
}

// GetClause retrieves a clause by ID.
func (l *Loader) GetClause(ctx context.Context, id string) (domain.ClauseInput, error) {
	in, ok := l.clauses[id]
	if !ok {
		return domain.ClauseInput{}, fmt.Errorf("clause not found: %s", id)
	}
	return in, nil
}

// ListClauses returns all available clause IDs.
func (l *Loader) ListClauses(ctx context.Context) ([]string, error) {
	return sortedKeys(l.clauses), nil
}
