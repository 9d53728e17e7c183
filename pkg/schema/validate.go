package schema

import (
	"sort"

	"github.com/aretw0/operad/pkg/domain"
)

// Schema is a map of variable names to their expected types.
type Schema map[string]Type

// Validate checks vars against the schema and reports every failure in
// variable order. Variables the schema does not name are ignored.
func Validate(schema Schema, vars domain.Vars) error {
	if len(schema) == 0 {
		return nil
	}

	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		typ := schema[key]
		value, exists := vars[key]
		if !exists || !value.IsValid() {
			if !isOptional(typ) {
				errs = append(errs, &ValidationError{Key: key, Reason: "required"})
			}
			continue
		}
		if err := typ.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: key, Reason: err.Error(), Value: value})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
