package tool

import (
	"fmt"
	"math"
)

// Schema is a JSON-Schema-like object description for tool parameters. Only
// the subset the decision protocol needs is modeled: an object with typed,
// optionally required properties.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Object is a convenience constructor for the common case.
func Object(props map[string]Property, required ...string) Schema {
	return Schema{Type: "object", Properties: props, Required: required}
}

// Validate checks params against the schema: required fields present, typed
// fields matching. Unknown parameters are tolerated, matching the lenient
// read of AI output elsewhere.
func (s Schema) Validate(params map[string]any) error {
	for _, name := range s.Required {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("missing required parameter %q", name)
		}
	}
	for name, value := range params {
		prop, ok := s.Properties[name]
		if !ok {
			continue
		}
		if err := checkType(prop.Type, value); err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
	}
	return nil
}

func checkType(want string, value any) error {
	if value == nil {
		return fmt.Errorf("expected %s, got null", want)
	}
	switch want {
	case "", "any":
		return nil
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "number":
		if !isNumber(value) {
			return fmt.Errorf("expected number, got %T", value)
		}
	case "integer":
		if !isInteger(value) {
			return fmt.Errorf("expected integer, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
	default:
		return fmt.Errorf("unsupported schema type %q", want)
	}
	return nil
}

func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int32, int64:
		return true
	}
	return false
}

// isInteger accepts integral float64 values because encoding/json decodes
// all JSON numbers as float64.
func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		return v == math.Trunc(v)
	}
	return false
}
