// Package validator implements the Output Validator from spec.md §4.5: a
// JSON-Schema-equivalent structural check (required keys, type tags, enum
// sets) run against a processor's Success.Output before the orchestrator
// commits the step. No JSON-Schema library appears anywhere in the
// example pack, so this is a deliberately minimal hand-written subset
// rather than a full draft-2020-12 implementation — see DESIGN.md.
package validator

import (
	"fmt"
)

// Schema is the subset of JSON-Schema this validator understands: object
// schemas with typed, optionally required, optionally enum-constrained
// properties, plus recursive nesting for "object" and "array" types.
type Schema struct {
	Type       string             `json:"type"`
	Required   []string           `json:"required,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Enum       []any              `json:"enum,omitempty"`
}

// Validate checks value against schema, returning every violation found
// (not just the first) so a processor's output can be diagnosed in one
// pass.
func Validate(schema *Schema, value any) []string {
	if schema == nil {
		return nil
	}
	return validateAt(schema, value, "$")
}

func validateAt(schema *Schema, value any, path string) []string {
	var problems []string

	if schema.Type != "" && !matchesType(schema.Type, value) {
		problems = append(problems, fmt.Sprintf("%s: expected type %q, got %s", path, schema.Type, goTypeName(value)))
		return problems // type mismatch makes deeper checks meaningless
	}

	if len(schema.Enum) > 0 && !inEnum(schema.Enum, value) {
		problems = append(problems, fmt.Sprintf("%s: value not in allowed enum", path))
	}

	switch schema.Type {
	case "object":
		obj, _ := value.(map[string]any)
		for _, req := range schema.Required {
			if _, ok := obj[req]; !ok {
				problems = append(problems, fmt.Sprintf("%s: missing required property %q", path, req))
			}
		}
		for name, propSchema := range schema.Properties {
			propVal, present := obj[name]
			if !present {
				continue
			}
			problems = append(problems, validateAt(propSchema, propVal, path+"."+name)...)
		}
	case "array":
		arr, _ := value.([]any)
		if schema.Items != nil {
			for i, item := range arr {
				problems = append(problems, validateAt(schema.Items, item, fmt.Sprintf("%s[%d]", path, i))...)
			}
		}
	}

	return problems
}

func matchesType(typ string, value any) bool {
	switch typ {
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "null":
		return value == nil
	default:
		return true
	}
}

func inEnum(enum []any, value any) bool {
	for _, candidate := range enum {
		if fmt.Sprint(candidate) == fmt.Sprint(value) {
			return true
		}
	}
	return false
}

func goTypeName(value any) string {
	if value == nil {
		return "null"
	}
	return fmt.Sprintf("%T", value)
}

// SchemaFromMap converts the map[string]any shape stored in
// Processor.OutputSchema (decoded from JSONB) into a *Schema tree. Decoding
// through an intermediate any-map (rather than directly unmarshaling JSON
// into Schema) is necessary because the schema is already decoded JSONB by
// the time it reaches the orchestrator.
func SchemaFromMap(m map[string]any) *Schema {
	if m == nil {
		return nil
	}
	s := &Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = t
	}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*Schema, len(props))
		for name, sub := range props {
			if subMap, ok := sub.(map[string]any); ok {
				s.Properties[name] = SchemaFromMap(subMap)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = SchemaFromMap(items)
	}
	if enum, ok := m["enum"].([]any); ok {
		s.Enum = enum
	}
	return s
}
