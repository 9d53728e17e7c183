package workflow

import (
	"github.com/aretw0/operad/pkg/domain"
	"github.com/aretw0/operad/pkg/schema"
)

// Resolution strategies for building the clause graph.
const (
	// ResolveExplicit wires nodes from depends_on only.
	ResolveExplicit = "explicit"
	// ResolveYields wires nodes by matching inputs to producer outputs.
	ResolveYields = "yields"
)

// Definition is a decoded workflow document.
type Definition struct {
	ID          string            `mapstructure:"id" validate:"required,ident"`
	ClauseID    string            `mapstructure:"clause_id" validate:"omitempty,ident"`
	Type        string            `mapstructure:"type"`
	Role        string            `mapstructure:"role"`
	Resolve     string            `mapstructure:"resolve" validate:"omitempty,oneof=explicit yields"`
	Inputs      []string          `mapstructure:"inputs" validate:"dive,ident"`
	Yields      []string          `mapstructure:"yields" validate:"dive,ident"`
	Loop        *Loop             `mapstructure:"loop"`
	Clauses     []Clause          `mapstructure:"clauses" validate:"required,min=1,unique=ID,dive"`
	Reflex      *Reflex           `mapstructure:"reflex"`
	Composition *Composition      `mapstructure:"composition"`
	Metadata    map[string]string `mapstructure:"metadata"`
	Schema      map[string]string `mapstructure:"schema"`
	Context     map[string]any    `mapstructure:"context"`
}

// Clause is one clause entry of a definition.
type Clause struct {
	ID          string   `mapstructure:"id" validate:"required,ident"`
	Text        string   `mapstructure:"text" validate:"required"`
	DependsOn   []string `mapstructure:"depends_on" validate:"dive,ident"`
	Inputs      []string `mapstructure:"inputs" validate:"dive,ident"`
	Outputs     []string `mapstructure:"outputs" validate:"dive,ident"`
	Description string   `mapstructure:"description"`
}

// Loop mirrors domain.LoopControl.
type Loop struct {
	Bounds         int      `mapstructure:"bounds" validate:"gte=0"`
	EntropyCap     float64  `mapstructure:"entropy_cap" validate:"gte=0,lte=1"`
	RetryLimit     int      `mapstructure:"retry_limit" validate:"gte=-1"`
	ExitConditions []string `mapstructure:"exit_conditions"`
}

// Reflex declares event triggers and the clauses they splice in.
type Reflex struct {
	Triggers map[string]string       `mapstructure:"triggers"`
	Clauses  map[string]ReflexClause `mapstructure:"clauses" validate:"dive"`
}

// ReflexClause is a reserve clause.
type ReflexClause struct {
	Text    string   `mapstructure:"text" validate:"required"`
	Mode    string   `mapstructure:"mode" validate:"omitempty,oneof=append replace"`
	Outputs []string `mapstructure:"outputs" validate:"dive,ident"`
}

// Composition mirrors domain.CompositionRules.
type Composition struct {
	Required []string `mapstructure:"required" validate:"dive,ident"`
}

// ClauseInputs returns the clauses in document order.
func (d *Definition) ClauseInputs() []domain.ClauseInput {
	out := make([]domain.ClauseInput, len(d.Clauses))
	for i, c := range d.Clauses {
		out[i] = domain.ClauseInput{
			ID:          c.ID,
			Text:        c.Text,
			DependsOn:   c.DependsOn,
			Inputs:      c.Inputs,
			Outputs:     c.Outputs,
			Description: c.Description,
		}
	}
	return out
}

// LoopControl converts the loop section. A missing section gives nil (defaults).
func (d *Definition) LoopControl() *domain.LoopControl {
	if d.Loop == nil {
		return nil
	}
	return &domain.LoopControl{
		Bounds:         d.Loop.Bounds,
		EntropyCap:     d.Loop.EntropyCap,
		RetryLimit:     d.Loop.RetryLimit,
		ExitConditions: d.Loop.ExitConditions,
	}
}

// ReflexConfig converts the reflex section.
func (d *Definition) ReflexConfig() *domain.ReflexConfig {
	if d.Reflex == nil {
		return nil
	}
	rc := &domain.ReflexConfig{TriggerMap: d.Reflex.Triggers}
	if len(d.Reflex.Clauses) > 0 {
		rc.Clauses = make(map[string]domain.ReflexClause, len(d.Reflex.Clauses))
		for id, c := range d.Reflex.Clauses {
			rc.Clauses[id] = domain.ReflexClause{
				ID:      id,
				Text:    c.Text,
				Mode:    domain.PatchMode(c.Mode),
				Outputs: c.Outputs,
			}
		}
	}
	return rc
}

// CompositionRules converts the composition section.
func (d *Definition) CompositionRules() *domain.CompositionRules {
	if d.Composition == nil {
		return nil
	}
	return &domain.CompositionRules{Required: d.Composition.Required}
}

// ContextSchema parses the schema section.
func (d *Definition) ContextSchema() (schema.Schema, error) {
	return schema.ParseTypeMap(d.Schema)
}

// InitialContext converts the context section into run variables.
func (d *Definition) InitialContext() (domain.Vars, error) {
	return domain.VarsFromMap(d.Context)
}

// UsesYields reports whether the graph is resolved from inputs and outputs.
func (d *Definition) UsesYields() bool {
	return d.Resolve == ResolveYields
}
