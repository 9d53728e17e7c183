package compiler

import (
	"github.com/aretw0/operad/pkg/domain"
)

// Evaluate resolves the condition against vars.
//
// An identifier missing from vars, or operands of different kinds, make
// every operator (including !=) evaluate to false. Booleans only support
// == and !=; strings compare lexically.
func Evaluate(cond domain.Condition, vars domain.Vars) bool {
	lhs, ok := resolve(cond.LHS, vars)
	if !ok {
		return false
	}
	rhs, ok := resolve(cond.RHS, vars)
	if !ok {
		return false
	}
	return compare(lhs, cond.Op, rhs)
}

// EvaluateClause evaluates the clause condition.
func EvaluateClause(c domain.Clause, vars domain.Vars) bool {
	return Evaluate(c.Condition, vars)
}

func resolve(o domain.Operand, vars domain.Vars) (domain.Value, bool) {
	if !o.IsIdent() {
		return o.Value, o.Value.IsValid()
	}
	return vars.Lookup(o.Ident)
}

func compare(a domain.Value, op domain.Operator, b domain.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case domain.KindBool:
		x, _ := a.AsBool()
		y, _ := b.AsBool()
		switch op {
		case domain.OpEqual:
			return x == y
		case domain.OpNotEqual:
			return x != y
		}
		return false
	case domain.KindNumber:
		x, _ := a.AsNumber()
		y, _ := b.AsNumber()
		return ordered(x, op, y)
	case domain.KindString:
		x, _ := a.AsString()
		y, _ := b.AsString()
		return ordered(x, op, y)
	}
	return false
}

func ordered[T float64 | string](x T, op domain.Operator, y T) bool {
	switch op {
	case domain.OpEqual:
		return x == y
	case domain.OpNotEqual:
		return x != y
	case domain.OpGreater:
		return x > y
	case domain.OpLess:
		return x < y
	case domain.OpGreaterEqual:
		return x >= y
	case domain.OpLessEqual:
		return x <= y
	}
	return false
}
