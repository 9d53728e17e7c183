package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/aretw0/operad/pkg/domain"
)

// Type defines the contract for variable validation.
type Type interface {
	// Name returns the type string (e.g., "string", "int?").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value domain.Value) error
}

// StringType validates string values.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Validate(value domain.Value) error {
	if _, ok := value.AsString(); !ok {
		return fmt.Errorf("expected string, got %s", value.Kind())
	}
	return nil
}

// NumberType validates numeric values.
type NumberType struct{}

func (t *NumberType) Name() string { return "number" }

func (t *NumberType) Validate(value domain.Value) error {
	if _, ok := value.AsNumber(); !ok {
		return fmt.Errorf("expected number, got %s", value.Kind())
	}
	return nil
}

// IntType validates whole numbers.
type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) Validate(value domain.Value) error {
	n, ok := value.AsNumber()
	if !ok {
		return fmt.Errorf("expected int, got %s", value.Kind())
	}
	if n != math.Trunc(n) || math.IsInf(n, 0) {
		return fmt.Errorf("expected int, got %v (not a whole number)", n)
	}
	return nil
}

// BoolType validates boolean values.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Validate(value domain.Value) error {
	if _, ok := value.AsBool(); !ok {
		return fmt.Errorf("expected bool, got %s", value.Kind())
	}
	return nil
}

// OptionalType accepts a missing variable; present values must match Elem.
type OptionalType struct {
	Elem Type
}

func (t *OptionalType) Name() string { return t.Elem.Name() + "?" }

func (t *OptionalType) Validate(value domain.Value) error {
	return t.Elem.Validate(value)
}

// CustomType applies a user-defined validation function.
type CustomType struct {
	name     string
	validate func(domain.Value) error
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Validate(value domain.Value) error {
	return t.validate(value)
}

func String() Type { return &StringType{} }

func Number() Type { return &NumberType{} }

func Int() Type { return &IntType{} }

func Bool() Type { return &BoolType{} }

// Optional marks elem as not required.
func Optional(elem Type) Type {
	if o, ok := elem.(*OptionalType); ok {
		return o
	}
	return &OptionalType{Elem: elem}
}

// Custom creates a custom type validator with a user-defined function.
func Custom(name string, validate func(domain.Value) error) Type {
	return &CustomType{name: name, validate: validate}
}

func isOptional(t Type) bool {
	_, ok := t.(*OptionalType)
	return ok
}

// ParseType converts a type string to a Type.
// Supports "string", "number" (or "float"), "int", "bool" and a "?" suffix.
func ParseType(typeStr string) (Type, error) {
	s := strings.TrimSpace(typeStr)
	if base, ok := strings.CutSuffix(s, "?"); ok {
		elem, err := ParseType(base)
		if err != nil {
			return nil, err
		}
		return Optional(elem), nil
	}

	switch s {
	case "string":
		return String(), nil
	case "number", "float":
		return Number(), nil
	case "int":
		return Int(), nil
	case "bool":
		return Bool(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %q", typeStr)
	}
}
