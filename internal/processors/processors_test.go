package processors_test

import (
	"context"
	"testing"

	"github.com/docuflow/enginecore/internal/domain/campaign"
	"github.com/docuflow/enginecore/internal/domain/document"
	"github.com/docuflow/enginecore/internal/processors"
	"github.com/docuflow/enginecore/internal/registry"
	"github.com/docuflow/enginecore/internal/validation"
	"github.com/stretchr/testify/require"
)

type stubBlobStorage struct{ data []byte }

func (s stubBlobStorage) Read(ctx context.Context, disk, path string) ([]byte, error) {
	return s.data, nil
}
func (s stubBlobStorage) Write(ctx context.Context, disk, path string, data []byte) error {
	return nil
}

func TestOCRProcessor_ReadsDocumentBytes(t *testing.T) {
	p := processors.OCRProcessor{}
	ec := &registry.ExecutionContext{
		Document: &document.Document{StorageDisk: "local", StoragePath: "doc.png"},
		Storage:  stubBlobStorage{data: []byte("hello world")},
	}
	success, failure := p.Execute(context.Background(), ec)
	require.Nil(t, failure)
	require.Equal(t, "hello world", success.Output["text"])
}

func TestOCRProcessor_NoStorageBound(t *testing.T) {
	p := processors.OCRProcessor{}
	ec := &registry.ExecutionContext{Document: &document.Document{}}
	success, failure := p.Execute(context.Background(), ec)
	require.Nil(t, success)
	require.True(t, failure.Retriable)
}

func TestClassificationProcessor_MatchesKeyword(t *testing.T) {
	p := processors.ClassificationProcessor{}
	ec := &registry.ExecutionContext{
		PriorOutputs: map[string]map[string]any{"ocr": {"text": "Invoice #1024 due"}},
		StepConfig: map[string]any{
			"categories": map[string]any{"invoice": "invoice", "receipt": "receipt"},
		},
	}
	success, failure := p.Execute(context.Background(), ec)
	require.Nil(t, failure)
	require.Equal(t, "invoice", success.Output["category"])
}

func TestClassificationProcessor_FallsBackUncategorized(t *testing.T) {
	p := processors.ClassificationProcessor{}
	ec := &registry.ExecutionContext{
		PriorOutputs: map[string]map[string]any{"ocr": {"text": "nothing matches"}},
		StepConfig:   map[string]any{"categories": map[string]any{"invoice": "invoice"}},
	}
	success, _ := p.Execute(context.Background(), ec)
	require.Equal(t, "uncategorized", success.Output["category"])
}

func TestExtractionProcessor_JSONPathMode(t *testing.T) {
	p := processors.ExtractionProcessor{}
	ec := &registry.ExecutionContext{
		PriorOutputs: map[string]map[string]any{
			"parse": {"invoice": map[string]any{"total": 42.5}},
		},
		StepConfig: map[string]any{
			"mode":        "jsonpath",
			"source_step": "parse",
			"fields":      map[string]any{"amount": "invoice.total"},
		},
	}
	success, failure := p.Execute(context.Background(), ec)
	require.Nil(t, failure)
	require.Equal(t, 42.5, success.Output["amount"])
}

func TestExtractionProcessor_ExpressionMode(t *testing.T) {
	p := processors.ExtractionProcessor{}
	ec := &registry.ExecutionContext{
		PriorOutputs: map[string]map[string]any{"parse": {"total": float64(10)}},
		StepConfig: map[string]any{
			"mode":        "expression",
			"source_step": "parse",
			"fields":      map[string]any{"doubled": "source.total * 2"},
		},
	}
	success, failure := p.Execute(context.Background(), ec)
	require.Nil(t, failure)
	require.EqualValues(t, 20, success.Output["doubled"])
}

func TestExtractionProcessor_MissingSource(t *testing.T) {
	p := processors.ExtractionProcessor{}
	ec := &registry.ExecutionContext{
		StepConfig: map[string]any{"source_step": "nope", "fields": map[string]any{}},
	}
	success, failure := p.Execute(context.Background(), ec)
	require.Nil(t, success)
	require.Equal(t, "missing_source", failure.Kind)
}

func TestValidationProcessor_PassesAndFails(t *testing.T) {
	rule := &validation.Rule{
		ID:     "zip",
		Type:   validation.TypeRegex,
		Config: map[string]any{"pattern": `^\d{5}$`},
		Translations: map[string]string{
			"en": ":attribute must be a 5-digit zip, got :value",
		},
	}
	p := processors.ValidationProcessor{Rules: map[string][]*validation.Rule{"zip_rules": {rule}}}

	ec := &registry.ExecutionContext{
		Campaign:     &campaign.Campaign{},
		PriorOutputs: map[string]map[string]any{"parse": {"zip": "90210"}},
		StepConfig: map[string]any{
			"rule_set":    "zip_rules",
			"field":       "zip",
			"source_step": "parse",
		},
	}
	success, failure := p.Execute(context.Background(), ec)
	require.Nil(t, failure)
	require.Equal(t, true, success.Output["valid"])

	ec.PriorOutputs["parse"]["zip"] = "abc"
	success, failure = p.Execute(context.Background(), ec)
	require.Nil(t, success)
	require.Equal(t, "validation_failed", failure.Kind)
	require.Contains(t, failure.Message, "zip must be a 5-digit zip, got abc")
}

func TestEnrichmentProcessor_MergesMetadataDelta(t *testing.T) {
	p := processors.EnrichmentProcessor{}
	ec := &registry.ExecutionContext{
		StepConfig: map[string]any{"metadata": map[string]any{"region": "us-west"}},
	}
	success, failure := p.Execute(context.Background(), ec)
	require.Nil(t, failure)
	require.Equal(t, "us-west", success.MetadataDelta["region"])
}

func TestNotificationProcessor_NoOp(t *testing.T) {
	p := processors.NotificationProcessor{}
	success, failure := p.Execute(context.Background(), &registry.ExecutionContext{})
	require.Nil(t, failure)
	require.Equal(t, true, success.Output["notified"])
}
