package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	domaintenant "github.com/docuflow/enginecore/internal/domain/tenant"
	"github.com/docuflow/enginecore/internal/logger"
	"github.com/docuflow/enginecore/internal/metrics"
	"github.com/docuflow/enginecore/internal/registry"
	"github.com/docuflow/enginecore/internal/resilience"
	"github.com/docuflow/enginecore/internal/storage"
	"github.com/robfig/cron/v3"
)

// backoffAdapter satisfies Orchestrator's RetryBackoff using a plain
// resilience.RetryConfig, avoiding a method on the shared struct that
// internal/resilience otherwise keeps function-based.
type backoffAdapter struct {
	cfg resilience.RetryConfig
}

func (b backoffAdapter) NextDelay(attempt int) time.Duration {
	return resilience.NextBackoff(b.cfg, attempt)
}

// TenantResolver looks up the Tenant and its database handle for a queued
// unit of work — the queue worker's "rehydrate tenant context" step
// (spec.md §2's data-flow summary, §4.1).
type TenantResolver interface {
	Resolve(ctx context.Context, tenantID string) (*domaintenant.Tenant, storage.Stores, *registry.ExecutionContext, error)
}

// reapCronSpec is the cron spec for the stale-job reap tick: work_queue
// rows a worker claimed but never Ack'd (crashed or killed mid-step) are
// returned to the pool every minute.
const reapCronSpec = "@every 1m"

// reapStaleAfter is how long a unit may sit locked before it's considered
// abandoned by its worker.
const reapStaleAfter = 5 * time.Minute

// Dispatcher drains the durable work_queue table with a poll loop and a
// bounded worker pool, grounded on the teacher's oracle.Dispatcher
// interval-ticker lifecycle; robfig/cron/v3 schedules a separate stale-job
// reap tick alongside the plain time.Ticker poll loop, per spec.md §4.8 /
// SPEC_FULL §4.8.
type Dispatcher struct {
	queue        storage.QueueStore
	orchestrator *Orchestrator
	resolver     TenantResolver
	log          *logger.Logger

	pollInterval time.Duration
	batchSize    int
	poolSize     int

	cron *cron.Cron

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewDispatcher(queue storage.QueueStore, orch *Orchestrator, resolver TenantResolver, pollInterval time.Duration, batchSize, poolSize int, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		queue: queue, orchestrator: orch, resolver: resolver,
		pollInterval: pollInterval, batchSize: batchSize, poolSize: poolSize,
		log: log, cron: cron.New(),
	}
}

// EnqueueStep implements Enqueuer for Orchestrator.
func (d *Dispatcher) EnqueueStep(ctx context.Context, tenantID, jobID string, stepIndex, attempt int, availableAt time.Time) error {
	return d.queue.Enqueue(ctx, storage.WorkUnit{
		TenantID: tenantID, JobID: jobID, StepIndex: stepIndex, Attempt: attempt,
	}, availableAt)
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.mu.Unlock()

	workerID := "docflow-worker"
	pool := make(chan struct{}, d.poolSize)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				d.poll(runCtx, workerID, pool)
			}
		}
	}()

	if _, err := d.cron.AddFunc(reapCronSpec, func() { d.reap(runCtx) }); err != nil {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		cancel()
		return fmt.Errorf("schedule stale-job reap tick: %w", err)
	}
	d.cron.Start()
	d.log.Info("pipeline dispatcher started")
	return nil
}

// reap returns work_queue units abandoned by a crashed or killed worker to
// the pool, per spec.md §4.8's stale-job reap tick.
func (d *Dispatcher) reap(ctx context.Context) {
	n, err := d.queue.ReapStale(ctx, reapStaleAfter)
	if err != nil {
		d.log.WithField("error", err).Warn("stale-job reap failed")
		return
	}
	if n > 0 {
		d.log.WithField("count", n).Info("reaped stale work_queue units")
	}
}

func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	cancel := d.cancel
	d.running = false
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.cron.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.wg.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	d.log.Info("pipeline dispatcher stopped")
	return nil
}

func (d *Dispatcher) poll(ctx context.Context, workerID string, pool chan struct{}) {
	units, err := d.queue.Dequeue(ctx, workerID, d.batchSize)
	if err != nil {
		d.log.WithField("error", err).Warn("dispatcher dequeue failed")
		return
	}

	for _, unit := range units {
		pool <- struct{}{}
		d.wg.Add(1)
		go func(u storage.WorkUnit) {
			defer d.wg.Done()
			defer func() { <-pool }()
			d.runUnit(ctx, u)
		}(unit)
	}
}

func (d *Dispatcher) runUnit(ctx context.Context, u storage.WorkUnit) {
	t, stores, ec, err := d.resolver.Resolve(ctx, u.TenantID)
	if err != nil {
		d.log.WithField("tenant_id", u.TenantID).WithField("error", err).Warn("tenant rehydration failed")
		return
	}
	if !t.IsActive() {
		d.log.WithField("tenant_id", u.TenantID).Warn("skipping unit for inactive tenant")
		return
	}

	if err := d.orchestrator.Invoke(ctx, t, stores, u.JobID, ec); err != nil {
		d.log.WithField("job_id", u.JobID).WithField("error", err).Warn("orchestrator invoke failed")
	}
	if depth, err := d.queue.Depth(ctx, u.TenantID); err == nil {
		metrics.SetQueueDepth(u.TenantID, depth)
	}
	_ = d.queue.Ack(ctx, u)
}
