package validator_test

import (
	"testing"

	"github.com/docuflow/enginecore/internal/validator"
	"github.com/stretchr/testify/require"
)

func TestValidate_MissingRequired(t *testing.T) {
	schema := &validator.Schema{
		Type:     "object",
		Required: []string{"text", "confidence"},
		Properties: map[string]*validator.Schema{
			"text":       {Type: "string"},
			"confidence": {Type: "number"},
		},
	}
	problems := validator.Validate(schema, map[string]any{"text": "hello"})
	require.Len(t, problems, 1)
	require.Contains(t, problems[0], "confidence")
}

func TestValidate_TypeMismatch(t *testing.T) {
	schema := &validator.Schema{
		Type: "object",
		Properties: map[string]*validator.Schema{
			"confidence": {Type: "number"},
		},
	}
	problems := validator.Validate(schema, map[string]any{"confidence": "not-a-number"})
	require.Len(t, problems, 1)
}

func TestValidate_EnumViolation(t *testing.T) {
	schema := &validator.Schema{
		Type: "object",
		Properties: map[string]*validator.Schema{
			"category": {Type: "string", Enum: []any{"invoice", "receipt"}},
		},
	}
	problems := validator.Validate(schema, map[string]any{"category": "spreadsheet"})
	require.Len(t, problems, 1)
}

func TestValidate_NestedArray(t *testing.T) {
	schema := &validator.Schema{
		Type: "object",
		Properties: map[string]*validator.Schema{
			"fields": {
				Type: "array",
				Items: &validator.Schema{
					Type:     "object",
					Required: []string{"name"},
				},
			},
		},
	}
	problems := validator.Validate(schema, map[string]any{
		"fields": []any{
			map[string]any{"name": "total"},
			map[string]any{"value": "42"},
		},
	})
	require.Len(t, problems, 1)
	require.Contains(t, problems[0], "fields[1]")
}

func TestValidate_Passes(t *testing.T) {
	schema := &validator.Schema{
		Type:     "object",
		Required: []string{"text"},
		Properties: map[string]*validator.Schema{
			"text": {Type: "string"},
		},
	}
	problems := validator.Validate(schema, map[string]any{"text": "ok"})
	require.Empty(t, problems)
}
