package domain

import (
	"strings"
)

// Operator is a comparison operator allowed in a clause condition.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

// Valid reports whether op is one of the six supported operators.
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return true
	}
	return false
}

// Operand is one side of a condition or an action argument.
// Exactly one of Ident or Value is set. Identifiers are resolved against
// the runtime context, never at parse time.
type Operand struct {
	Ident string `json:"ident,omitempty" yaml:"ident,omitempty"`
	Value Value  `json:"value" yaml:"value"`
}

// Ident returns an identifier operand.
func Ident(name string) Operand { return Operand{Ident: name} }

// Literal returns a literal operand.
func Literal(v Value) Operand { return Operand{Value: v} }

// IsIdent reports whether the operand refers to a context variable.
func (o Operand) IsIdent() bool { return o.Ident != "" }

func (o Operand) String() string {
	if o.IsIdent() {
		return o.Ident
	}
	return o.Value.String()
}

// Condition is the WHEN part of a clause.
type Condition struct {
	LHS Operand  `json:"lhs"`
	Op  Operator `json:"op"`
	RHS Operand  `json:"rhs"`
}

func (c Condition) String() string {
	return c.LHS.String() + " " + string(c.Op) + " " + c.RHS.String()
}

// ActionKind distinguishes bare actions from call actions.
type ActionKind string

const (
	ActionSimple ActionKind = "simple"
	ActionCall   ActionKind = "call"
)

// Action is the THEN part of a clause.
type Action struct {
	Kind ActionKind `json:"kind"`
	Name string     `json:"name"`
	Args []Operand  `json:"args,omitempty"`
}

func (a Action) String() string {
	if a.Kind != ActionCall {
		return a.Name
	}
	parts := make([]string, len(a.Args))
	for i, arg := range a.Args {
		parts[i] = arg.String()
	}
	return a.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Clause is a parsed WHEN/THEN rule. It is never mutated after parsing.
type Clause struct {
	ID          string    `json:"id"`
	Raw         string    `json:"raw"`
	Condition   Condition `json:"condition"`
	Action      Action    `json:"action"`
	Description string    `json:"description,omitempty"`
}

// ClauseResult reports the outcome of executing a clause.
type ClauseResult struct {
	ClauseID string   `json:"clause_id"`
	Success  bool     `json:"success"`
	Executed bool     `json:"executed"`
	Message  string   `json:"message"`
	Value    Value    `json:"value"`
	Triggers []string `json:"triggers,omitempty"`
}
