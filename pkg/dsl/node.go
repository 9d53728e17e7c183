package dsl

import "github.com/aretw0/operad/pkg/workflow"

// ClauseBuilder provides a fluent API for configuring a clause.
type ClauseBuilder struct {
	clause  workflow.Clause
	builder *Builder
}

// After adds explicit dependencies.
func (c *ClauseBuilder) After(ids ...string) *ClauseBuilder {
	c.clause.DependsOn = append(c.clause.DependsOn, ids...)
	return c
}

// Reads declares the variables the clause consumes.
func (c *ClauseBuilder) Reads(names ...string) *ClauseBuilder {
	c.clause.Inputs = append(c.clause.Inputs, names...)
	return c
}

// Writes declares the variables the clause produces.
func (c *ClauseBuilder) Writes(names ...string) *ClauseBuilder {
	c.clause.Outputs = append(c.clause.Outputs, names...)
	return c
}

// Describe sets a human description.
func (c *ClauseBuilder) Describe(text string) *ClauseBuilder {
	c.clause.Description = text
	return c
}

// Required marks this clause as never excisable.
func (c *ClauseBuilder) Required() *ClauseBuilder {
	c.builder.Require(c.clause.ID)
	return c
}

// Build returns the underlying clause.
func (c *ClauseBuilder) Build() workflow.Clause {
	return c.clause
}
