package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/docuflow/enginecore/internal/domain/campaign"
	"github.com/docuflow/enginecore/internal/domain/document"
	"github.com/docuflow/enginecore/internal/domain/job"
	"github.com/docuflow/enginecore/internal/domain/processor"
	domaintenant "github.com/docuflow/enginecore/internal/domain/tenant"
	"github.com/docuflow/enginecore/internal/hooks"
	"github.com/docuflow/enginecore/internal/logger"
	"github.com/docuflow/enginecore/internal/pipeline"
	"github.com/docuflow/enginecore/internal/registry"
	"github.com/docuflow/enginecore/internal/storage"
	"github.com/docuflow/enginecore/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

type fixedBackoff struct{ d time.Duration }

func (f fixedBackoff) NextDelay(attempt int) time.Duration { return f.d }

type recordingEnqueuer struct {
	calls []string
}

func (r *recordingEnqueuer) EnqueueStep(ctx context.Context, tenantID, jobID string, stepIndex, attempt int, availableAt time.Time) error {
	r.calls = append(r.calls, jobID)
	return nil
}

type stubProcessor struct {
	slug    string
	success *registry.Success
	failure *registry.Failure
}

func (s stubProcessor) ID() string                     { return s.slug }
func (s stubProcessor) Describe() registry.Descriptor  { return registry.Descriptor{Name: s.slug, Category: "ocr"} }
func (s stubProcessor) Execute(ctx context.Context, ec *registry.ExecutionContext) (*registry.Success, *registry.Failure) {
	return s.success, s.failure
}

func newFixture(t *testing.T, proc registry.Processor) (*pipeline.Orchestrator, *recordingEnqueuer, storage.Stores, *job.DocumentJob) {
	t.Helper()
	stores := memory.New().Stores()

	c := &campaign.Campaign{
		Name: "Invoice Intake",
		Type: campaign.TypeTemplate,
		PipelineConfig: campaign.PipelineConfig{
			Processors: []campaign.ProcessorStep{{ID: "step1", Type: "ocr-basic"}},
		},
	}
	require.NoError(t, stores.Campaigns.Create(context.Background(), c))

	doc := &document.Document{CampaignID: c.ID, State: document.StateQueued}
	require.NoError(t, stores.Documents.Create(context.Background(), doc))

	j := &job.DocumentJob{
		DocumentID:       doc.ID,
		CampaignID:       c.ID,
		State:            job.StateQueued,
		PipelineSnapshot: c.PipelineConfig,
		MaxAttempts:      3,
	}
	require.NoError(t, stores.Jobs.Create(context.Background(), j))

	reg := registry.New()
	reg.Register(proc)

	enq := &recordingEnqueuer{}
	log := logger.NewDefault("test")
	orch := pipeline.NewOrchestrator(reg, hooks.NewManager(log), enq, fixedBackoff{}, log)
	return orch, enq, stores, j
}

func tenantFor(stores storage.Stores) *domaintenant.Tenant {
	return &domaintenant.Tenant{ID: "t1", Status: domaintenant.StatusActive}
}

func TestOrchestrator_SuccessAdvancesAndCompletes(t *testing.T) {
	proc := stubProcessor{slug: "ocr-basic", success: &registry.Success{Output: map[string]any{"text": "hi"}}}
	orch, enq, stores, j := newFixture(t, proc)

	err := orch.Invoke(context.Background(), tenantFor(stores), stores, j.ID, &registry.ExecutionContext{})
	require.NoError(t, err)

	reloaded, err := stores.Jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StateCompleted, reloaded.State)
	require.Empty(t, enq.calls) // single-step pipeline completes without a re-enqueue

	doc, err := stores.Documents.Get(context.Background(), reloaded.DocumentID)
	require.NoError(t, err)
	require.Equal(t, document.StateCompleted, doc.State)
	require.Len(t, doc.ProcessingHistory, 1)
}

func TestOrchestrator_RetriableFailureReenqueues(t *testing.T) {
	proc := stubProcessor{slug: "ocr-basic", failure: &registry.Failure{Kind: "timeout", Message: "upstream timed out", Retriable: true}}
	orch, enq, stores, j := newFixture(t, proc)

	err := orch.Invoke(context.Background(), tenantFor(stores), stores, j.ID, &registry.ExecutionContext{})
	require.NoError(t, err)

	reloaded, err := stores.Jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StateRunning, reloaded.State)
	require.Equal(t, 1, reloaded.Attempts)
	require.Len(t, enq.calls, 1)
}

func TestOrchestrator_FatalFailureFailsJobAndDocument(t *testing.T) {
	proc := stubProcessor{slug: "ocr-basic", failure: &registry.Failure{Kind: "invalid_input", Message: "malformed document", Retriable: false}}
	orch, _, stores, j := newFixture(t, proc)

	err := orch.Invoke(context.Background(), tenantFor(stores), stores, j.ID, &registry.ExecutionContext{})
	require.NoError(t, err)

	reloaded, err := stores.Jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StateFailed, reloaded.State)
	require.Len(t, reloaded.ErrorLog, 1)

	doc, err := stores.Documents.Get(context.Background(), reloaded.DocumentID)
	require.NoError(t, err)
	require.Equal(t, document.StateFailed, doc.State)
	require.Equal(t, "malformed document", doc.ErrorMessage)
}

func TestOrchestrator_TerminalJobIsNoOp(t *testing.T) {
	proc := stubProcessor{slug: "ocr-basic", success: &registry.Success{}}
	orch, _, stores, j := newFixture(t, proc)

	j.State = job.StateCompleted
	now := time.Now().UTC()
	j.CompletedAt = &now
	require.NoError(t, stores.Jobs.Update(context.Background(), j))

	err := orch.Invoke(context.Background(), tenantFor(stores), stores, j.ID, &registry.ExecutionContext{})
	require.NoError(t, err)
}

func TestOrchestrator_DuplicateInvocationIsIdempotent(t *testing.T) {
	proc := stubProcessor{slug: "ocr-basic", success: &registry.Success{Output: map[string]any{"text": "hi"}}}
	orch, _, stores, j := newFixture(t, proc)

	require.NoError(t, orch.Invoke(context.Background(), tenantFor(stores), stores, j.ID, &registry.ExecutionContext{}))
	reloaded, err := stores.Jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StateCompleted, reloaded.State)

	// A second invocation against the now-terminal job must be a no-op.
	require.NoError(t, orch.Invoke(context.Background(), tenantFor(stores), stores, j.ID, &registry.ExecutionContext{}))

	executions, err := stores.Executions.ListByJob(context.Background(), j.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	require.Equal(t, processor.StateCompleted, executions[0].State)
}

func TestOrchestrator_UnresolvableProcessorFailsJobFatally(t *testing.T) {
	orch, _, stores, j := newFixture(t, stubProcessor{slug: "something-else"})

	err := orch.Invoke(context.Background(), tenantFor(stores), stores, j.ID, &registry.ExecutionContext{})
	require.NoError(t, err)

	reloaded, err := stores.Jobs.Get(context.Background(), j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StateFailed, reloaded.State)
}

func TestOrchestrator_DocumentReachesProcessingBeforeCompleting(t *testing.T) {
	stores := memory.New().Stores()

	c := &campaign.Campaign{
		Name: "Invoice Intake",
		Type: campaign.TypeTemplate,
		PipelineConfig: campaign.PipelineConfig{
			Processors: []campaign.ProcessorStep{{ID: "step1", Type: "ocr-basic"}, {ID: "step2", Type: "ocr-basic"}},
		},
	}
	require.NoError(t, stores.Campaigns.Create(context.Background(), c))

	doc := &document.Document{CampaignID: c.ID, State: document.StateQueued}
	require.NoError(t, stores.Documents.Create(context.Background(), doc))

	j := &job.DocumentJob{
		DocumentID: doc.ID, CampaignID: c.ID, State: job.StateQueued,
		PipelineSnapshot: c.PipelineConfig, MaxAttempts: 3,
	}
	require.NoError(t, stores.Jobs.Create(context.Background(), j))

	reg := registry.New()
	reg.Register(stubProcessor{slug: "ocr-basic", success: &registry.Success{Output: map[string]any{"text": "hi"}}})
	log := logger.NewDefault("test")
	orch := pipeline.NewOrchestrator(reg, hooks.NewManager(log), &recordingEnqueuer{}, fixedBackoff{}, log)

	// First step only: the job has a second step left, so the job isn't
	// complete yet, but the document must already have left "queued".
	require.NoError(t, orch.Invoke(context.Background(), tenantFor(stores), stores, j.ID, &registry.ExecutionContext{}))
	mid, err := stores.Documents.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, document.StateProcessing, mid.State)

	// Second step completes the job, which must carry the document through
	// to "completed" rather than leaving it stuck in "processing".
	require.NoError(t, orch.Invoke(context.Background(), tenantFor(stores), stores, j.ID, &registry.ExecutionContext{}))
	final, err := stores.Documents.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, document.StateCompleted, final.State)
}

func TestOrchestrator_IllegalDocumentTransitionIsSurfacedNotSwallowed(t *testing.T) {
	proc := stubProcessor{slug: "ocr-basic", success: &registry.Success{Output: map[string]any{"text": "hi"}}}
	orch, _, stores, j := newFixture(t, proc)

	doc, err := stores.Documents.Get(context.Background(), j.DocumentID)
	require.NoError(t, err)
	doc.State = document.StateCancelled
	require.NoError(t, stores.Documents.Update(context.Background(), doc))

	err = orch.Invoke(context.Background(), tenantFor(stores), stores, j.ID, &registry.ExecutionContext{})
	require.Error(t, err)
}
