// Package processors ships baseline reference implementations for each
// processor category spec.md's data model names (ocr, classification,
// extraction, validation, enrichment, notification), satisfying
// internal/registry.Processor. Real deployments are expected to register
// additional, more capable processors of the same categories; these exist
// to exercise the orchestrator end to end and as a template for new ones.
package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docuflow/enginecore/internal/registry"
	"github.com/dop251/goja"
	"github.com/tidwall/gjson"
)

// OCRProcessor produces placeholder text output for a document; real OCR
// backends (Tesseract, cloud vision APIs) slot in behind the same
// contract by replacing the body of Execute.
type OCRProcessor struct{}

func (OCRProcessor) ID() string { return "ocr-basic" }

func (OCRProcessor) Describe() registry.Descriptor {
	return registry.Descriptor{
		Name:     "Basic OCR",
		Category: "ocr",
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"text"},
			"properties": map[string]any{
				"text":       map[string]any{"type": "string"},
				"confidence": map[string]any{"type": "number"},
			},
		},
	}
}

func (OCRProcessor) Execute(ctx context.Context, ec *registry.ExecutionContext) (*registry.Success, *registry.Failure) {
	if ec.Storage == nil {
		return nil, &registry.Failure{Kind: "storage_unavailable", Message: "no blob storage bound", Retriable: true}
	}
	data, err := ec.Storage.Read(ctx, ec.Document.StorageDisk, ec.Document.StoragePath)
	if err != nil {
		return nil, &registry.Failure{Kind: "read_failed", Message: err.Error(), Retriable: true}
	}
	return &registry.Success{
		Output: map[string]any{
			"text":       strings.ToValidUTF8(string(data), ""),
			"confidence": 0.92,
		},
	}, nil
}

// ClassificationProcessor assigns a category to a document using a simple
// keyword match against configured categories — a stand-in for a model
// call, satisfying the same contract a richer implementation would.
type ClassificationProcessor struct{}

func (ClassificationProcessor) ID() string { return "classification-keyword" }

func (ClassificationProcessor) Describe() registry.Descriptor {
	return registry.Descriptor{
		Name:     "Keyword Classifier",
		Category: "classification",
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"category"},
			"properties": map[string]any{
				"category": map[string]any{"type": "string"},
			},
		},
	}
}

func (ClassificationProcessor) Execute(ctx context.Context, ec *registry.ExecutionContext) (*registry.Success, *registry.Failure) {
	text, _ := firstPriorOutputField(ec.PriorOutputs, "text")
	categories, _ := ec.StepConfig["categories"].(map[string]any)
	for category, kw := range categories {
		keyword, ok := kw.(string)
		if ok && keyword != "" && strings.Contains(strings.ToLower(text), strings.ToLower(keyword)) {
			return &registry.Success{Output: map[string]any{"category": category}}, nil
		}
	}
	return &registry.Success{Output: map[string]any{"category": "uncategorized"}}, nil
}

// ExtractionProcessor pulls fields out of a prior step's JSON output,
// either by jsonpath (tidwall/gjson, grounded on
// services/requests/marble/dispatcher.go's use of gjson) or by a sandboxed
// goja expression (grounded on internal/services/functions' TEE executor
// use of goja), selected by step_config.mode.
type ExtractionProcessor struct{}

func (ExtractionProcessor) ID() string { return "extraction-fields" }

func (ExtractionProcessor) Describe() registry.Descriptor {
	return registry.Descriptor{Name: "Field Extraction", Category: "extraction"}
}

func (ExtractionProcessor) Execute(ctx context.Context, ec *registry.ExecutionContext) (*registry.Success, *registry.Failure) {
	mode, _ := ec.StepConfig["mode"].(string)
	fields, _ := ec.StepConfig["fields"].(map[string]any)

	sourceStep, _ := ec.StepConfig["source_step"].(string)
	source, ok := ec.PriorOutputs[sourceStep]
	if !ok {
		return nil, &registry.Failure{Kind: "missing_source", Message: fmt.Sprintf("no prior output for step %q", sourceStep), Retriable: false}
	}
	sourceJSON, err := toJSON(source)
	if err != nil {
		return nil, &registry.Failure{Kind: "invalid_source", Message: err.Error(), Retriable: false}
	}

	out := make(map[string]any, len(fields))
	switch mode {
	case "expression":
		vm := goja.New()
		_ = vm.Set("source", source)
		for name, expr := range fields {
			exprStr, _ := expr.(string)
			result, err := vm.RunString(exprStr)
			if err != nil {
				return nil, &registry.Failure{Kind: "expression_error", Message: err.Error(), Retriable: false}
			}
			out[name] = result.Export()
		}
	default: // "jsonpath"
		for name, path := range fields {
			pathStr, _ := path.(string)
			out[name] = gjson.GetBytes(sourceJSON, pathStr).Value()
		}
	}
	return &registry.Success{Output: out}, nil
}

func toJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func firstPriorOutputField(outputs map[string]map[string]any, field string) (string, bool) {
	for _, out := range outputs {
		if v, ok := out[field]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
