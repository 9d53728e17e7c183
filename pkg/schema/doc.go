// Package schema types the context of a kernel run.
//
// A schema maps variable names to types. Values in a run context are
// booleans, numbers or strings, so the built-in types are string, number,
// int (a whole number) and bool. A trailing "?" makes a variable optional.
//
//	s := schema.Schema{
//	    "calendar.conflicts": schema.Int(),
//	    "user":               schema.String(),
//	    "urgent":             schema.Optional(schema.Bool()),
//	}
//
//	if err := schema.Validate(s, vars); err != nil {
//	    // every failure is listed in the *AggregateError
//	}
//
// Schemas are written in documents as type strings:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "calendar.conflicts": "int",
//	    "urgent":             "bool?",
//	})
//
// Custom validators can be registered for domain-specific checks:
//
//	positive := schema.Custom("positive", func(v domain.Value) error {
//	    n, ok := v.AsNumber()
//	    if !ok || n <= 0 {
//	        return fmt.Errorf("must be a positive number")
//	    }
//	    return nil
//	})
package schema
