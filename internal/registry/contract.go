// Package registry defines the Processor contract every pipeline step
// implementation satisfies, and a slug-indexed registry that resolves a
// campaign step's `type` to an executable Processor — grounded on the
// teacher's internal/app/services/oracle resolver interface. A processor's
// slug is whatever its ID() returns (the built-ins use names such as
// "ocr-basic"); it is not derived from the Go type name.
package registry

import (
	"context"

	"github.com/docuflow/enginecore/internal/domain/campaign"
	"github.com/docuflow/enginecore/internal/domain/document"
)

// ExecutionContext is everything a Processor's Execute needs: the document
// under processing, its owning campaign, this step's declared config, the
// outputs of prior steps in the same job (keyed by step id), a credential
// resolver bound to the running tenant, and a handle to tenant-scoped blob
// storage for processors that read/write document bytes.
type ExecutionContext struct {
	Document      *document.Document
	Campaign      *campaign.Campaign
	StepConfig    map[string]any
	PriorOutputs  map[string]map[string]any
	Credentials   CredentialResolver
	Storage       BlobStorage
}

// CredentialResolver is the subset of internal/credentials.Resolver a
// Processor needs, kept narrow so processors don't depend on the storage
// layer directly.
type CredentialResolver interface {
	Resolve(ctx context.Context, key, processorID, campaignID, tenantID string) (string, error)
}

// BlobStorage is the minimal object-storage surface a processor needs to
// read the document it is processing. Concrete implementations live
// outside this package (local disk, S3-compatible, ...); out of scope for
// this spec beyond the interface shape (see spec.md's transport Non-goal).
type BlobStorage interface {
	Read(ctx context.Context, disk, path string) ([]byte, error)
	Write(ctx context.Context, disk, path string, data []byte) error
}

// Success is returned by Execute when the step produced a usable result.
type Success struct {
	Output        map[string]any
	TokensUsed    int64
	CostCredits   float64
	MetadataDelta map[string]any
}

// Failure is returned by Execute when the step could not produce a result.
// Kind is a short machine-readable category (e.g. "timeout",
// "invalid_input", "upstream_error") used for operator-facing diagnostics;
// Retriable controls whether the orchestrator schedules another attempt.
type Failure struct {
	Kind      string
	Message   string
	Retriable bool
}

func (f *Failure) Error() string { return f.Kind + ": " + f.Message }

// Descriptor is a Processor's static metadata, returned by Describe.
type Descriptor struct {
	Name         string
	Category     string
	ConfigSchema map[string]any
	// OutputSchema, when non-nil, is validated against Execute's Success
	// output before the orchestrator commits the step (spec.md §4.5).
	OutputSchema map[string]any
}

// Processor is the uniform contract every pipeline step implementation
// satisfies (spec.md §4.4).
type Processor interface {
	ID() string
	Describe() Descriptor
	Execute(ctx context.Context, ec *ExecutionContext) (*Success, *Failure)
}
