package schema

import (
	"encoding/json"
	"fmt"
)

// ParseTypeMap converts a map of variable names to type strings into a Schema.
// Example: {"calendar.conflicts": "int", "urgent": "bool?"}
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	if typeMap == nil {
		return nil, nil
	}
	result := make(Schema, len(typeMap))
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}

// TypeMap returns the type strings of s, the form stored in kernels.
func (s Schema) TypeMap() map[string]string {
	if s == nil {
		return nil
	}
	out := make(map[string]string, len(s))
	for key, typ := range s {
		out[key] = typ.Name()
	}
	return out
}

// MarshalJSON serializes the schema as a map of variable names to type strings.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	for key, typ := range s {
		if typ == nil {
			return nil, fmt.Errorf("variable %s: type is nil", key)
		}
	}
	return json.Marshal(s.TypeMap())
}

// UnmarshalJSON deserializes the schema from a map of variable names to type strings.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTypeMap(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
