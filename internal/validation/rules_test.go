package validation_test

import (
	"testing"

	"github.com/docuflow/enginecore/internal/validation"
	"github.com/stretchr/testify/require"
)

func TestRule_Regex(t *testing.T) {
	r := &validation.Rule{
		ID:   "zip",
		Type: validation.TypeRegex,
		Config: map[string]any{"pattern": `^\d{5}$`},
		Translations: map[string]string{"en": ":attribute must be a 5-digit zip, got :value"},
	}
	ok, err := r.Evaluate("90210")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Evaluate("abc")
	require.NoError(t, err)
	require.False(t, ok)

	msg := r.RenderMessage("en", "zip_code", "abc")
	require.Equal(t, "zip_code must be a 5-digit zip, got abc", msg)
}

func TestRule_Expression(t *testing.T) {
	r := &validation.Rule{
		ID:     "length",
		Type:   validation.TypeExpression,
		Config: map[string]any{"expression": "value.length >= 3"},
	}
	ok, err := r.Evaluate("hi")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.Evaluate("hello")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRule_RenderMessage_FallsBackToEnglish(t *testing.T) {
	r := &validation.Rule{
		Translations: map[string]string{"en": ":attribute is invalid"},
	}
	msg := r.RenderMessage("fr", "champ", "x")
	require.Equal(t, "champ is invalid", msg)
}

func TestResolveLocale_Precedence(t *testing.T) {
	require.Equal(t, "es", validation.ResolveLocale("es", "de"))
	require.Equal(t, "de", validation.ResolveLocale("", "de"))
	require.Equal(t, "en", validation.ResolveLocale("", ""))
}
