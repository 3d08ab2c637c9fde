package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FieldType is the vocabulary of argument types a schema can demand.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "boolean"
	TypeUUID   FieldType = "uuid"
)

// Field is one named argument in a function schema.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
}

// Schema is the argument contract of one registered function.
type Schema struct {
	Fields []Field
}

// Validate checks args against the schema and returns a coerced copy.
// Models often emit numbers as strings and vice versa, so scalar
// coercions are applied before type errors are raised. Unknown keys are
// dropped silently.
func (s Schema) Validate(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		raw, present := args[f.Name]
		if !present || raw == nil {
			if f.Required {
				return nil, fmt.Errorf("dispatch: missing required argument %q", f.Name)
			}
			continue
		}
		coerced, err := coerce(raw, f.Type)
		if err != nil {
			return nil, fmt.Errorf("dispatch: argument %q: %w", f.Name, err)
		}
		out[f.Name] = coerced
	}
	return out, nil
}

func coerce(v any, t FieldType) (any, error) {
	switch t {
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(x), nil
		}
	case TypeNumber:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, fmt.Errorf("not a number: %q", x)
			}
			return n, nil
		}
	case TypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("not a boolean: %q", x)
			}
			return b, nil
		}
	case TypeUUID:
		if s, ok := v.(string); ok {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("not a uuid: %q", s)
			}
			return id, nil
		}
	}
	return nil, fmt.Errorf("unexpected type %T for %s", v, t)
}
