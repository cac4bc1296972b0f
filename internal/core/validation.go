package core

import (
	"fmt"
	"regexp"
	"strings"
)

// SlugPattern matches the lowercase, hyphen-separated identifiers used for
// processor slugs and campaign slugs throughout the engine.
var SlugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidationErrors collects field-level validation failures so callers (the
// campaign importer, in particular) can report every problem at once instead
// of failing on the first one.
type ValidationErrors struct {
	Errors []*ImporterValidationErr
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

func (v *ValidationErrors) Add(field, reason string) {
	v.Errors = append(v.Errors, &ImporterValidationErr{Field: field, Reason: reason})
}

func (v *ValidationErrors) HasErrors() bool { return len(v.Errors) > 0 }

func (v *ValidationErrors) Error() string {
	parts := make([]string, 0, len(v.Errors))
	for _, e := range v.Errors {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// First returns the first collected error, or nil if none were added.
func (v *ValidationErrors) First() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}

// RequireString validates that a string field is non-empty after trimming.
func RequireString(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ImporterValidationErr{Field: field, Reason: "required"}
	}
	return nil
}

// RequireOneOf validates that value is a member of allowed.
func RequireOneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ImporterValidationErr{Field: field, Reason: fmt.Sprintf("must be one of %s", strings.Join(allowed, ", "))}
}

// Slugify derives a slug from a human-readable name: lowercase, non-alphanumeric
// runs collapsed to single hyphens, leading/trailing hyphens trimmed.
func Slugify(name string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash && b.Len() > 0 {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
