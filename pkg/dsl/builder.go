package dsl

import (
	"fmt"

	"github.com/aretw0/operad/pkg/workflow"
)

// Builder manages the definition construction.
type Builder struct {
	def     workflow.Definition
	clauses map[string]*ClauseBuilder
	order   []string
}

// New creates a builder for the workflow id.
func New(id string) *Builder {
	return &Builder{
		def:     workflow.Definition{ID: id},
		clauses: make(map[string]*ClauseBuilder),
	}
}

// Clause adds a clause to the workflow.
// If the clause already exists, its text is replaced and the existing builder returned.
func (b *Builder) Clause(id, text string) *ClauseBuilder {
	if cb, ok := b.clauses[id]; ok {
		cb.clause.Text = text
		return cb
	}
	cb := &ClauseBuilder{
		clause:  workflow.Clause{ID: id, Text: text},
		builder: b,
	}
	b.clauses[id] = cb
	b.order = append(b.order, id)
	return cb
}

// Yields switches the graph resolution to input/output matching and declares
// the workflow-level outputs.
func (b *Builder) Yields(outputs ...string) *Builder {
	b.def.Resolve = workflow.ResolveYields
	b.def.Yields = append(b.def.Yields, outputs...)
	return b
}

// Inputs declares variables supplied from outside the workflow.
func (b *Builder) Inputs(names ...string) *Builder {
	b.def.Inputs = append(b.def.Inputs, names...)
	return b
}

func (b *Builder) loop() *workflow.Loop {
	if b.def.Loop == nil {
		b.def.Loop = &workflow.Loop{}
	}
	return b.def.Loop
}

// Bounds sets the iteration bound.
func (b *Builder) Bounds(n int) *Builder {
	b.loop().Bounds = n
	return b
}

// EntropyCap sets the governor freeze threshold.
func (b *Builder) EntropyCap(v float64) *Builder {
	b.loop().EntropyCap = v
	return b
}

// RetryLimit sets the per-node retry budget.
func (b *Builder) RetryLimit(n int) *Builder {
	b.loop().RetryLimit = n
	return b
}

// ExitWhen adds exit conditions.
func (b *Builder) ExitWhen(conds ...string) *Builder {
	l := b.loop()
	l.ExitConditions = append(l.ExitConditions, conds...)
	return b
}

// On maps an event type to a reserve clause appended when the event arrives.
func (b *Builder) On(event, clauseID, text string, outputs ...string) *Builder {
	return b.reflex(event, clauseID, workflow.ReflexClause{Text: text, Mode: "append", Outputs: outputs})
}

// Replace maps an event type to a reserve clause that replaces the node of the same id.
func (b *Builder) Replace(event, clauseID, text string, outputs ...string) *Builder {
	return b.reflex(event, clauseID, workflow.ReflexClause{Text: text, Mode: "replace", Outputs: outputs})
}

func (b *Builder) reflex(event, clauseID string, rc workflow.ReflexClause) *Builder {
	if b.def.Reflex == nil {
		b.def.Reflex = &workflow.Reflex{
			Triggers: make(map[string]string),
			Clauses:  make(map[string]workflow.ReflexClause),
		}
	}
	b.def.Reflex.Triggers[event] = clauseID
	b.def.Reflex.Clauses[clauseID] = rc
	return b
}

// Require marks nodes that must never be excised.
func (b *Builder) Require(ids ...string) *Builder {
	if b.def.Composition == nil {
		b.def.Composition = &workflow.Composition{}
	}
	b.def.Composition.Required = append(b.def.Composition.Required, ids...)
	return b
}

// Typed declares the type of a context variable.
func (b *Builder) Typed(key, typ string) *Builder {
	if b.def.Schema == nil {
		b.def.Schema = make(map[string]string)
	}
	b.def.Schema[key] = typ
	return b
}

// Context sets an initial variable.
func (b *Builder) Context(key string, value any) *Builder {
	if b.def.Context == nil {
		b.def.Context = make(map[string]any)
	}
	b.def.Context[key] = value
	return b
}

// Meta attaches a metadata entry.
func (b *Builder) Meta(key, value string) *Builder {
	if b.def.Metadata == nil {
		b.def.Metadata = make(map[string]string)
	}
	b.def.Metadata[key] = value
	return b
}

// Build returns the validated definition. Clauses keep insertion order.
func (b *Builder) Build() (*workflow.Definition, error) {
	def := b.def
	def.Clauses = make([]workflow.Clause, 0, len(b.order))
	for _, id := range b.order {
		def.Clauses = append(def.Clauses, b.clauses[id].clause)
	}
	if err := workflow.Validate(&def); err != nil {
		return nil, fmt.Errorf("dsl: %w", err)
	}
	return &def, nil
}
