package processors

import (
	"context"
	"fmt"

	"github.com/docuflow/enginecore/internal/registry"
	"github.com/docuflow/enginecore/internal/validation"
)

// ValidationProcessor runs the tenant's custom_validation_rules (internal/
// validation.Rule) against a field pulled from a prior step's output,
// failing non-retriably on the first violated rule — structural per-field
// output validation lives in internal/validator, this is the row/field
// level custom-rule pass from spec.md §4.10.
type ValidationProcessor struct {
	Rules map[string][]*validation.Rule // step_config["rule_set"] -> rules
}

func (ValidationProcessor) ID() string { return "validation-custom-rules" }

func (ValidationProcessor) Describe() registry.Descriptor {
	return registry.Descriptor{Name: "Custom Rule Validation", Category: "validation"}
}

func (p ValidationProcessor) Execute(ctx context.Context, ec *registry.ExecutionContext) (*registry.Success, *registry.Failure) {
	ruleSet, _ := ec.StepConfig["rule_set"].(string)
	field, _ := ec.StepConfig["field"].(string)
	sourceStep, _ := ec.StepConfig["source_step"].(string)

	source, ok := ec.PriorOutputs[sourceStep]
	if !ok {
		return nil, &registry.Failure{Kind: "missing_source", Message: fmt.Sprintf("no prior output for step %q", sourceStep), Retriable: false}
	}
	raw, ok := source[field]
	if !ok {
		return nil, &registry.Failure{Kind: "missing_field", Message: fmt.Sprintf("field %q absent from step %q output", field, sourceStep), Retriable: false}
	}
	value := fmt.Sprint(raw)

	for _, rule := range p.Rules[ruleSet] {
		ok, err := rule.Evaluate(value)
		if err != nil {
			return nil, &registry.Failure{Kind: "rule_error", Message: err.Error(), Retriable: false}
		}
		if !ok {
			locale := validation.ResolveLocale(ec.Campaign.Locale(), "")
			msg := rule.RenderMessage(locale, field, value)
			return nil, &registry.Failure{Kind: "validation_failed", Message: msg, Retriable: false}
		}
	}

	return &registry.Success{Output: map[string]any{"valid": true, "field": field}}, nil
}

// EnrichmentProcessor merges a static, configured set of key/value pairs
// into the document's metadata via MetadataDelta — a stand-in for a
// richer enrichment call (address normalization, entity linking, ...)
// that would populate the same shape.
type EnrichmentProcessor struct{}

func (EnrichmentProcessor) ID() string { return "enrichment-static" }

func (EnrichmentProcessor) Describe() registry.Descriptor {
	return registry.Descriptor{Name: "Static Enrichment", Category: "enrichment"}
}

func (EnrichmentProcessor) Execute(ctx context.Context, ec *registry.ExecutionContext) (*registry.Success, *registry.Failure) {
	delta, _ := ec.StepConfig["metadata"].(map[string]any)
	return &registry.Success{Output: map[string]any{"enriched": true}, MetadataDelta: delta}, nil
}

// NotificationProcessor is a no-op placeholder for processors whose real
// job is sending an outbound notification through a channel outside this
// spec's scope (transport is a Non-goal); it exists so a pipeline can
// declare a notification step and have the orchestrator exercise the full
// contract around it.
type NotificationProcessor struct{}

func (NotificationProcessor) ID() string { return "notification-noop" }

func (NotificationProcessor) Describe() registry.Descriptor {
	return registry.Descriptor{Name: "Notification (no-op)", Category: "notification"}
}

func (NotificationProcessor) Execute(ctx context.Context, ec *registry.ExecutionContext) (*registry.Success, *registry.Failure) {
	return &registry.Success{Output: map[string]any{"notified": true}}, nil
}
