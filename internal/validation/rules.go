// Package validation implements the custom, tenant-defined row-level
// validation rules from spec.md §4.10 used on the CSV import path:
// `regex` rules via stdlib regexp, `expression` rules via the same
// sandboxed dop251/goja JS runtime the extraction processor's expression
// mode uses (grounded on the teacher's internal/services/functions TEE
// executor use of goja). Locale-keyed message rendering is a small
// placeholder substitution grounded on nothing in the pack — no i18n
// library appears anywhere in the corpus — so it is implemented directly
// with strings.Replacer, per DESIGN.md.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
)

type Type string

const (
	TypeRegex      Type = "regex"
	TypeExpression Type = "expression"
)

// Rule is one tenant-defined custom_validation_rule row.
type Rule struct {
	ID           string
	Type         Type
	Config       map[string]any
	Translations map[string]string // locale -> message template
	Placeholders map[string]string // name -> value, merged into template substitution
}

// Evaluate runs the rule against value, returning ok=true when the row
// passes. For TypeRegex, Config["pattern"] is matched against value.
// For TypeExpression, Config["expression"] is evaluated as a goja script
// with `value` bound in scope; it must return a boolean.
func (r *Rule) Evaluate(value string) (bool, error) {
	switch r.Type {
	case TypeRegex:
		pattern, _ := r.Config["pattern"].(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("compile regex rule %s: %w", r.ID, err)
		}
		return re.MatchString(value), nil

	case TypeExpression:
		expr, _ := r.Config["expression"].(string)
		vm := goja.New()
		if err := vm.Set("value", value); err != nil {
			return false, err
		}
		result, err := vm.RunString(expr)
		if err != nil {
			return false, fmt.Errorf("evaluate expression rule %s: %w", r.ID, err)
		}
		return result.ToBoolean(), nil

	default:
		return false, fmt.Errorf("unknown validation rule type %q", r.Type)
	}
}

// RenderMessage resolves the rule's translation for locale (falling back to
// "en"), then substitutes :attribute, :value, and any rule-defined
// placeholders, per spec.md §4.10.
func (r *Rule) RenderMessage(locale, attribute, value string) string {
	template, ok := r.Translations[locale]
	if !ok {
		template, ok = r.Translations["en"]
		if !ok {
			template = "validation failed"
		}
	}

	pairs := []string{":attribute", attribute, ":value", value}
	for name, val := range r.Placeholders {
		pairs = append(pairs, ":"+name, val)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// ResolveLocale implements the precedence spec.md §4.10 names: Campaign
// settings.locale > Tenant settings.locale > "en".
func ResolveLocale(campaignLocale, tenantLocale string) string {
	if campaignLocale != "" {
		return campaignLocale
	}
	if tenantLocale != "" {
		return tenantLocale
	}
	return "en"
}
