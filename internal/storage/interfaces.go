// Package storage defines the repository interfaces every tenant-scoped
// component programs against; internal/storage/memory and
// internal/storage/postgres provide the two implementations, mirroring the
// teacher's internal/app/storage package split.
package storage

import (
	"context"
	"time"

	"github.com/docuflow/enginecore/internal/domain/audit"
	"github.com/docuflow/enginecore/internal/domain/campaign"
	"github.com/docuflow/enginecore/internal/domain/credential"
	"github.com/docuflow/enginecore/internal/domain/document"
	"github.com/docuflow/enginecore/internal/domain/job"
	"github.com/docuflow/enginecore/internal/domain/processor"
	"github.com/docuflow/enginecore/internal/domain/progress"
	"github.com/docuflow/enginecore/internal/domain/usage"
)

// CampaignStore persists Campaign rows within one tenant database.
type CampaignStore interface {
	Create(ctx context.Context, c *campaign.Campaign) error
	Get(ctx context.Context, id string) (*campaign.Campaign, error)
	GetBySlug(ctx context.Context, slug string) (*campaign.Campaign, error)
	List(ctx context.Context, limit, offset int) ([]*campaign.Campaign, error)
}

// DocumentStore persists Document rows.
type DocumentStore interface {
	Create(ctx context.Context, d *document.Document) error
	Get(ctx context.Context, id string) (*document.Document, error)
	GetByUUID(ctx context.Context, uuid string) (*document.Document, error)
	Update(ctx context.Context, d *document.Document) error
}

// JobStore persists DocumentJob rows, including the single conditional
// update used to enforce single-writer discipline per (job_id, step_index).
type JobStore interface {
	Create(ctx context.Context, j *job.DocumentJob) error
	Get(ctx context.Context, id string) (*job.DocumentJob, error)
	GetByUUID(ctx context.Context, uuid string) (*job.DocumentJob, error)
	// GetByDocumentID returns the most recently created job for documentID —
	// the HTTP read-model API's lookup path from a Document's uuid to the
	// PipelineProgress/ProcessorExecution rows keyed by job id.
	GetByDocumentID(ctx context.Context, documentID string) (*job.DocumentJob, error)
	// CompareAndUpdate persists j only if the row's current state still
	// equals expectedState; returns false (no error) when it does not,
	// the mechanism spec.md §5 requires for exactly-one-completed-execution.
	CompareAndUpdate(ctx context.Context, j *job.DocumentJob, expectedState job.State) (bool, error)
}

// ProcessorStore persists registered Processor metadata, including
// per-tenant rows lazily consulted by the registry's register_from_database.
type ProcessorStore interface {
	GetBySlug(ctx context.Context, slug string) (*processor.Processor, error)
	List(ctx context.Context) ([]*processor.Processor, error)
	Upsert(ctx context.Context, p *processor.Processor) error
}

// ExecutionStore persists ProcessorExecution rows, keyed for idempotent
// completion by (job_id, step_id, attempt).
type ExecutionStore interface {
	// CreateIfAbsent inserts e unless a row with the same idempotency key
	// already exists, in which case it returns the existing row and
	// created=false — the mechanism behind spec.md §4.7's idempotence
	// guarantee.
	CreateIfAbsent(ctx context.Context, e *processor.ProcessorExecution) (created bool, existing *processor.ProcessorExecution, err error)
	Update(ctx context.Context, e *processor.ProcessorExecution) error
	ListByJob(ctx context.Context, jobID string) ([]*processor.ProcessorExecution, error)
}

// CredentialStore persists encrypted Credential rows.
type CredentialStore interface {
	Find(ctx context.Context, key string, scope credential.Scope, scopeRef string) (*credential.Credential, error)
	Put(ctx context.Context, c *credential.Credential) error
	TouchLastUsed(ctx context.Context, id string) error
}

// UsageStore persists append-only UsageEvent rows.
type UsageStore interface {
	Record(ctx context.Context, e *usage.Event) error
}

// AuditStore persists append-only AuditLog rows. It exposes no Update or
// Delete method — append-only is enforced by the interface shape itself.
type AuditStore interface {
	Record(ctx context.Context, e *audit.Entry) error
	ListFor(ctx context.Context, auditableType, auditableID string) ([]*audit.Entry, error)
}

// ProgressStore persists the PipelineProgress projection.
type ProgressStore interface {
	Upsert(ctx context.Context, p *progress.Progress) error
	Get(ctx context.Context, jobID string) (*progress.Progress, error)
}

// QueueStore is the durable work queue backing the Job Dispatcher (§4.8):
// a Postgres table queue drained with SELECT ... FOR UPDATE SKIP LOCKED.
type QueueStore interface {
	Enqueue(ctx context.Context, unit WorkUnit, availableAt time.Time) error
	// Dequeue claims up to `limit` available units, marking them locked by
	// workerID so no other worker's concurrent Dequeue can observe them.
	Dequeue(ctx context.Context, workerID string, limit int) ([]WorkUnit, error)
	Ack(ctx context.Context, unit WorkUnit) error
	Depth(ctx context.Context, tenantID string) (int, error)
	// ReapStale clears locked_by/locked_at on any unit a worker claimed more
	// than olderThan ago but never Ack'd — the worker crashed or was killed
	// mid-step — returning it to the pool for another Dequeue. Returns the
	// number of units reclaimed.
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// WorkUnit is one queued pipeline-step invocation: (tenant_id, job_id,
// step_index, attempt), per spec.md §4.8.
type WorkUnit struct {
	ID         int64
	TenantID   string
	JobID      string
	StepIndex  int
	Attempt    int
}

// Stores aggregates every per-tenant repository the orchestrator and its
// collaborators need, mirroring the teacher's internal/app.Stores struct.
type Stores struct {
	Campaigns    CampaignStore
	Documents    DocumentStore
	Jobs         JobStore
	Processors   ProcessorStore
	Executions   ExecutionStore
	Credentials  CredentialStore
	Usage        UsageStore
	Audit        AuditStore
	Progress     ProgressStore
	Queue        QueueStore
}
