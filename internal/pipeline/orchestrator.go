// Package pipeline implements the Pipeline Orchestrator from spec.md §4.7:
// the central state machine that owns a single DocumentJob's execution,
// generalized from the teacher's internal/app/services/oracle.Dispatcher
// tick/resolve loop (poll -> resolve -> mark running -> complete/fail ->
// reschedule) into the multi-stage, multi-step state machine this spec
// describes.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/docuflow/enginecore/internal/core"
	"github.com/docuflow/enginecore/internal/domain/audit"
	"github.com/docuflow/enginecore/internal/domain/document"
	"github.com/docuflow/enginecore/internal/domain/job"
	"github.com/docuflow/enginecore/internal/domain/processor"
	"github.com/docuflow/enginecore/internal/domain/progress"
	"github.com/docuflow/enginecore/internal/domain/usage"
	"github.com/docuflow/enginecore/internal/hooks"
	"github.com/docuflow/enginecore/internal/logger"
	"github.com/docuflow/enginecore/internal/metrics"
	"github.com/docuflow/enginecore/internal/registry"
	tenantctx "github.com/docuflow/enginecore/internal/tenant"
	domaintenant "github.com/docuflow/enginecore/internal/domain/tenant"
	"github.com/docuflow/enginecore/internal/statemachine"
	"github.com/docuflow/enginecore/internal/storage"
	"github.com/docuflow/enginecore/internal/validator"
)

// Enqueuer schedules the next step invocation — implemented by
// internal/pipeline.Dispatcher's QueueStore wiring. Kept as an interface so
// Orchestrator can be unit tested without a real queue.
type Enqueuer interface {
	EnqueueStep(ctx context.Context, tenantID, jobID string, stepIndex, attempt int, availableAt time.Time) error
}

// Orchestrator advances exactly one DocumentJob per Invoke call, per
// spec.md §4.7's eleven-step algorithm.
type Orchestrator struct {
	registry *registry.Registry
	hookMgr  *hooks.Manager
	queue    Enqueuer
	log      *logger.Logger
	retryCfg RetryBackoff
}

// RetryBackoff is the subset of internal/resilience.RetryConfig the
// orchestrator needs to compute a re-enqueue delay.
type RetryBackoff interface {
	NextDelay(attempt int) time.Duration
}

func NewOrchestrator(reg *registry.Registry, hookMgr *hooks.Manager, queue Enqueuer, retryCfg RetryBackoff, log *logger.Logger) *Orchestrator {
	return &Orchestrator{registry: reg, hookMgr: hookMgr, queue: queue, retryCfg: retryCfg, log: log}
}

// Invoke runs one tick of the orchestrator for (tenantID, jobID), per
// spec.md §4.7 steps 1-11. stores must already be bound to the correct
// tenant database (the queue worker is responsible for tenant rehydration
// before calling Invoke — step 1 of the algorithm).
func (o *Orchestrator) Invoke(ctx context.Context, t *domaintenant.Tenant, stores storage.Stores, jobID string, ec *registry.ExecutionContext) error {
	ctx = tenantctx.Bind(ctx, t)

	// Step 2: load job, return early if terminal.
	j, err := stores.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.IsTerminal() {
		return nil
	}

	doc, err := stores.Documents.Get(ctx, j.DocumentID)
	if err != nil {
		return err
	}

	// Step 3: transition queued -> running (idempotent if already running),
	// carrying the document from queued into processing alongside it.
	if err := o.markRunning(ctx, stores, j); err != nil {
		return err
	}
	if err := o.markDocumentProcessing(ctx, stores, doc); err != nil {
		return err
	}

	// Step 4: read current step.
	step, ok := j.CurrentStep()
	if !ok {
		if err := UpdateProgress(ctx, stores, j, "completed", ""); err != nil {
			return err
		}
		return o.completeJobFrom(ctx, stores, j, j.State, doc)
	}
	if err := UpdateProgress(ctx, stores, j, "running", step.ID); err != nil {
		return err
	}

	camp, err := stores.Campaigns.Get(ctx, j.CampaignID)
	if err != nil {
		return err
	}
	ec.Document = doc
	ec.Campaign = camp
	ec.PriorOutputs = priorOutputsFrom(doc.ProcessingHistory)

	// Step 5: resolve processor.
	proc, err := o.registry.Resolve(ctx, step.Type, stores.Processors)
	if err != nil {
		return o.failJob(ctx, stores, j, step.ID, j.Attempts, err.Error(), false)
	}

	// Step 6: create ProcessorExecution in pending, idempotent on
	// (job_id, step_id, attempt).
	exec := &processor.ProcessorExecution{
		JobID:       j.ID,
		ProcessorID: proc.ID(),
		StepID:      step.ID,
		Attempt:     j.Attempts + 1,
		State:       processor.StatePending,
		ConfigSnapshot: step.Config,
	}
	created, existing, err := stores.Executions.CreateIfAbsent(ctx, exec)
	if err != nil {
		return err
	}
	if !created {
		// Another worker already owns this (job_id, step_id, attempt); this
		// invocation is a no-op duplicate, per spec.md §4.7's idempotence
		// guarantee.
		exec = existing
		if exec.State == processor.StateCompleted || exec.State == processor.StateFailed {
			return nil
		}
	}

	// Step 7: hooks.before, transition pending -> running.
	if err := statemachine.Check(statemachine.MachineProcessorExecution, string(exec.State), string(processor.StateRunning)); err != nil {
		return err
	}
	exec.State = processor.StateRunning
	o.hookMgr.Before(ctx, exec)
	if err := stores.Executions.Update(ctx, exec); err != nil {
		return err
	}

	// Step 8: execute.
	ec.StepConfig = step.Config
	started := time.Now()
	success, failure := proc.Execute(ctx, ec)
	status := "completed"
	if success == nil {
		status = "failed"
	}
	metrics.RecordProcessorExecution(proc.Describe().Category, status, time.Since(started))

	if success != nil {
		return o.handleSuccess(ctx, t.ID, stores, j, exec, proc, success)
	}
	return o.handleFailure(ctx, t.ID, stores, j, exec, failure)
}

func (o *Orchestrator) markRunning(ctx context.Context, stores storage.Stores, j *job.DocumentJob) error {
	if j.State == job.StateRunning {
		return nil
	}
	if err := statemachine.Check(statemachine.MachineDocumentJob, string(j.State), string(job.StateRunning)); err != nil {
		return err
	}
	prior := j.State
	j.State = job.StateRunning
	now := time.Now().UTC()
	j.StartedAt = &now
	ok, err := stores.Jobs.CompareAndUpdate(ctx, j, prior)
	if err != nil {
		return err
	}
	if !ok {
		// Another worker beat us to it; reload to pick up its state.
		reloaded, err := stores.Jobs.Get(ctx, j.ID)
		if err != nil {
			return err
		}
		*j = *reloaded
	}
	return nil
}

func (o *Orchestrator) handleSuccess(ctx context.Context, tenantID string, stores storage.Stores, j *job.DocumentJob, exec *processor.ProcessorExecution, proc registry.Processor, success *registry.Success) error {
	desc := proc.Describe()
	if desc.OutputSchema != nil {
		schema := validator.SchemaFromMap(desc.OutputSchema)
		if problems := validator.Validate(schema, anyMap(success.Output)); len(problems) > 0 {
			failErr := &core.OutputValidationError{Path: exec.StepID, Message: fmt.Sprintf("%v", problems)}
			return o.failJob(ctx, stores, j, exec.StepID, j.Attempts, failErr.Error(), false)
		}
	}

	now := time.Now().UTC()
	exec.State = processor.StateCompleted
	exec.Output = success.Output
	exec.TokensUsed = success.TokensUsed
	exec.CostCredits = success.CostCredits
	exec.CompletedAt = &now
	if err := stores.Executions.Update(ctx, exec); err != nil {
		return err
	}
	o.hookMgr.After(ctx, exec, success.Output)
	metrics.RecordPipelineStep("success")

	doc, err := stores.Documents.Get(ctx, j.DocumentID)
	if err != nil {
		return err
	}
	doc.AppendHistory(document.HistoryEntry{
		StepID:      exec.StepID,
		ProcessorID: exec.ProcessorID,
		Output:      success.Output,
		CompletedAt: now,
	}, success.MetadataDelta)
	if err := stores.Documents.Update(ctx, doc); err != nil {
		return err
	}

	if err := stores.Usage.Record(ctx, &usage.Event{
		Type: usage.TypeProcessorExecution, Units: 1, CostCredits: success.CostCredits,
		CampaignID: j.CampaignID, DocumentID: j.DocumentID, JobID: j.ID, OccurredAt: now,
	}); err != nil {
		return err
	}
	if success.TokensUsed > 0 {
		if err := stores.Usage.Record(ctx, &usage.Event{
			Type: usage.TypeAITask, Units: float64(success.TokensUsed), CampaignID: j.CampaignID,
			DocumentID: j.DocumentID, JobID: j.ID, OccurredAt: now,
		}); err != nil {
			return err
		}
	}

	prior := j.State
	j.CurrentStepIndex++
	if _, ok := j.CurrentStep(); !ok {
		if err := UpdateProgress(ctx, stores, j, "completed", exec.StepID); err != nil {
			return err
		}
		return o.completeJobFrom(ctx, stores, j, prior, doc)
	}
	if err := UpdateProgress(ctx, stores, j, "running", exec.StepID); err != nil {
		return err
	}

	ok, err := stores.Jobs.CompareAndUpdate(ctx, j, prior)
	if err != nil {
		return err
	}
	if !ok {
		return nil // surrendered: another worker already advanced this job
	}
	return o.enqueueNext(ctx, tenantID, j)
}

// markDocumentProcessing carries the document from queued into processing
// alongside the job's queued -> running transition (step 3), so
// that the completion and failure paths always find the document in a
// state that legally transitions to completed/failed — never silently
// skipping that update because the document was never marked processing
// in the first place.
func (o *Orchestrator) markDocumentProcessing(ctx context.Context, stores storage.Stores, doc *document.Document) error {
	if doc.State == document.StateProcessing {
		return nil
	}
	if err := statemachine.Check(statemachine.MachineDocument, string(doc.State), string(document.StateProcessing)); err != nil {
		return err
	}
	doc.State = document.StateProcessing
	return stores.Documents.Update(ctx, doc)
}

func (o *Orchestrator) completeJobFrom(ctx context.Context, stores storage.Stores, j *job.DocumentJob, prior job.State, doc *document.Document) error {
	if err := statemachine.Check(statemachine.MachineDocumentJob, string(prior), string(job.StateCompleted)); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.State = job.StateCompleted
	j.CompletedAt = &now
	if ok, err := stores.Jobs.CompareAndUpdate(ctx, j, prior); err != nil {
		return err
	} else if !ok {
		return nil
	}

	if err := statemachine.Check(statemachine.MachineDocument, string(doc.State), string(document.StateCompleted)); err != nil {
		return err
	}
	doc.State = document.StateCompleted
	if err := stores.Documents.Update(ctx, doc); err != nil {
		return err
	}

	return stores.Audit.Record(ctx, &audit.Entry{
		AuditableType: "document_job", AuditableID: j.ID, Event: "document.completed", CreatedAt: now,
	})
}

func (o *Orchestrator) handleFailure(ctx context.Context, tenantID string, stores storage.Stores, j *job.DocumentJob, exec *processor.ProcessorExecution, failure *registry.Failure) error {
	now := time.Now().UTC()
	exec.State = processor.StateFailed
	exec.Error = failure.Message
	exec.CompletedAt = &now
	if err := stores.Executions.Update(ctx, exec); err != nil {
		return err
	}
	o.hookMgr.OnFailure(ctx, exec, failure)
	metrics.RecordPipelineStep("failure")

	attempts := j.Attempts + 1
	if failure.Retriable && attempts < j.MaxAttempts {
		j.Attempts = attempts
		j.ErrorLog = append(j.ErrorLog, job.ErrorLogEntry{
			StepID: exec.StepID, Attempt: attempts, Message: failure.Message, Retriable: true, OccurredAt: now,
		})
		prior := j.State
		ok, err := stores.Jobs.CompareAndUpdate(ctx, j, prior)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		delay := time.Duration(0)
		if o.retryCfg != nil {
			delay = o.retryCfg.NextDelay(attempts)
		}
		return o.queue.EnqueueStep(ctx, tenantID, j.ID, j.CurrentStepIndex, attempts, now.Add(delay))
	}

	return o.failJob(ctx, stores, j, exec.StepID, attempts, failure.Message, true)
}

func (o *Orchestrator) failJob(ctx context.Context, stores storage.Stores, j *job.DocumentJob, stepID string, attempts int, message string, fromRetryExhaustion bool) error {
	now := time.Now().UTC()
	j.ErrorLog = append(j.ErrorLog, job.ErrorLogEntry{
		StepID: stepID, Attempt: attempts, Message: message, Retriable: false, OccurredAt: now,
	})

	prior := j.State
	target := job.StateFailed
	if err := statemachine.Check(statemachine.MachineDocumentJob, string(prior), string(target)); err != nil && prior != job.StateFailed {
		return err
	}
	j.State = target
	j.CompletedAt = &now
	if ok, err := stores.Jobs.CompareAndUpdate(ctx, j, prior); err != nil {
		return err
	} else if !ok {
		return nil
	}

	doc, err := stores.Documents.Get(ctx, j.DocumentID)
	if err != nil {
		return err
	}
	if err := statemachine.Check(statemachine.MachineDocument, string(doc.State), string(document.StateFailed)); err != nil {
		return err
	}
	doc.State = document.StateFailed
	doc.ErrorMessage = message
	if err := stores.Documents.Update(ctx, doc); err != nil {
		return err
	}

	if err := UpdateProgress(ctx, stores, j, "failed", stepID); err != nil {
		return err
	}

	return stores.Audit.Record(ctx, &audit.Entry{
		AuditableType: "document_job", AuditableID: j.ID, Event: "document.failed",
		NewValues: map[string]any{"error": message}, CreatedAt: now,
	})
}

func (o *Orchestrator) enqueueNext(ctx context.Context, tenantID string, j *job.DocumentJob) error {
	return o.queue.EnqueueStep(ctx, tenantID, j.ID, j.CurrentStepIndex, 0, time.Now().UTC())
}

// UpdateProgress recomputes and persists the PipelineProgress projection
// for a job, called alongside every orchestrator transition per spec.md's
// "append-only read-model maintained alongside orchestrator transitions".
func UpdateProgress(ctx context.Context, stores storage.Stores, j *job.DocumentJob, status, stageName string) error {
	p := &progress.Progress{
		JobID: j.ID, StageCount: j.StageCount(), CompletedStages: j.CurrentStepIndex,
		CurrentStageName: stageName, Status: status, UpdatedAt: time.Now().UTC(),
	}
	p.Recompute()
	return stores.Progress.Upsert(ctx, p)
}

func anyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// priorOutputsFrom projects a document's processing history into the
// step-id-keyed map ExecutionContext.PriorOutputs exposes to processors
// (step 8's extraction/validation/enrichment processors read earlier
// steps' output by step id, per SPEC_FULL §4.4).
func priorOutputsFrom(history []document.HistoryEntry) map[string]map[string]any {
	out := make(map[string]map[string]any, len(history))
	for _, h := range history {
		out[h.StepID] = h.Output
	}
	return out
}
