// Package app wires the engine's per-component packages into a runnable
// whole, grounded on the teacher's internal/app/application.go: a functional
// Option set for runtime overrides, a New constructor that opens the central
// database and registers the built-in processors, and per-tenant runtimes
// (postgres-backed Stores plus a Dispatcher) brought up by
// EnsureTenantRunning.
package app

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/docuflow/enginecore/internal/blobstore"
	"github.com/docuflow/enginecore/internal/central"
	"github.com/docuflow/enginecore/internal/config"
	"github.com/docuflow/enginecore/internal/credentials"
	domaintenant "github.com/docuflow/enginecore/internal/domain/tenant"
	"github.com/docuflow/enginecore/internal/hooks"
	"github.com/docuflow/enginecore/internal/importer"
	"github.com/docuflow/enginecore/internal/logger"
	"github.com/docuflow/enginecore/internal/pipeline"
	"github.com/docuflow/enginecore/internal/processors"
	"github.com/docuflow/enginecore/internal/registry"
	"github.com/docuflow/enginecore/internal/resilience"
	"github.com/docuflow/enginecore/internal/storage"
	"github.com/docuflow/enginecore/internal/storage/postgres"
	"github.com/docuflow/enginecore/internal/tenant"
)

// Option customises the application runtime.
type Option func(*builderConfig)

type builderConfig struct {
	blobs    registry.BlobStorage
	retryCfg resilience.RetryConfig
}

// WithBlobStorage overrides the default local-disk blob store.
func WithBlobStorage(b registry.BlobStorage) Option {
	return func(b2 *builderConfig) { b2.blobs = b }
}

// WithRetryConfig overrides the default retry/backoff policy used to
// schedule retried steps.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(b *builderConfig) { b.retryCfg = cfg }
}

// tenantRuntime is the set of live, per-tenant-database-scoped components a
// running Application keeps one of per active tenant — the durable work
// queue (and therefore the dispatcher draining it) lives inside each
// tenant's own database, per this engine's physical per-tenant separation.
type tenantRuntime struct {
	db         *sql.DB
	stores     storage.Stores
	dispatcher *pipeline.Dispatcher
}

// Application ties every per-component package together and manages the
// per-tenant dispatcher lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	central *sql.DB

	catalog     *tenant.Catalog
	connections *tenant.ConnectionManager
	registry    *registry.Registry
	blobs       registry.BlobStorage
	masterKey   []byte
	retryCfg    resilience.RetryConfig

	mu      sync.Mutex
	runtime map[string]*tenantRuntime // tenant id -> runtime
}

// New opens the central database, registers the built-in processors, and
// returns an Application ready to have tenants brought up via Start or
// EnsureTenantRunning. It does not itself start any tenant's dispatcher.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	b := builderConfig{retryCfg: resilience.DefaultRetryConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}
	if b.blobs == nil {
		b.blobs = blobstore.NewLocalDisk(cfg.StorageRoot)
	}

	centralDB, err := sql.Open("postgres", cfg.CentralDSN)
	if err != nil {
		return nil, fmt.Errorf("open central database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := centralDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping central database: %w", err)
	}
	if err := central.Apply(ctx, centralDB); err != nil {
		return nil, fmt.Errorf("apply central migrations: %w", err)
	}

	masterKey, err := decodeMasterKey(cfg.CredentialMasterKeyHex)
	if err != nil {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("decode credential master key: %w", err)
		}
		log.WithError(err).Warn("no valid credential master key configured; credential encryption disabled")
	}

	reg := registry.New()
	registerBuiltins(reg)

	return &Application{
		cfg:         cfg,
		log:         log,
		central:     centralDB,
		catalog:     tenant.NewCatalog(centralDB),
		connections: tenant.NewConnectionManager(cfg.TenantDSNTemplate, log),
		registry:    reg,
		blobs:       b.blobs,
		masterKey:   masterKey,
		retryCfg:    b.retryCfg,
		runtime:     make(map[string]*tenantRuntime),
	}, nil
}

// registerBuiltins registers the reference Processor implementations
// SPEC_FULL §4.4 names for each category, so a freshly booted engine can
// execute a campaign that references them without any runtime
// registration step.
func registerBuiltins(reg *registry.Registry) {
	reg.Register(processors.OCRProcessor{})
	reg.Register(processors.ClassificationProcessor{})
	reg.Register(processors.ExtractionProcessor{})
	reg.Register(processors.EnrichmentProcessor{})
	reg.Register(processors.NotificationProcessor{})
}

// Registry exposes the processor registry so an importer/CLI caller can
// validate a campaign definition against it.
func (a *Application) Registry() *registry.Registry { return a.registry }

// Catalog exposes the tenant catalog for identity-resolution callers
// (HTTP middleware, CLI tooling).
func (a *Application) Catalog() *tenant.Catalog { return a.catalog }

// Storage exposes the configured blob store for callers that persist
// document bytes outside of a tenant dispatcher's ExecutionContext (the
// HTTP upload action).
func (a *Application) Storage() registry.BlobStorage { return a.blobs }

// DefaultMaxAttempts exposes the configured retry ceiling new jobs are
// created with.
func (a *Application) DefaultMaxAttempts() int { return a.cfg.DefaultMaxAttempts }

// Start brings up a dispatcher for every currently active tenant. New
// tenants created after Start has run are brought up lazily via
// EnsureTenantRunning the first time a request touches them.
func (a *Application) Start(ctx context.Context) error {
	tenants, err := a.catalog.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}
	for _, t := range tenants {
		if _, err := a.EnsureTenantRunning(ctx, t); err != nil {
			a.log.WithTenant(t.ID).WithField("error", err).Error("failed to start tenant dispatcher")
		}
	}
	return nil
}

// Stop drains every running tenant dispatcher and closes its database
// handle.
func (a *Application) Stop(ctx context.Context) error {
	a.mu.Lock()
	runtimes := make([]*tenantRuntime, 0, len(a.runtime))
	for _, rt := range a.runtime {
		runtimes = append(runtimes, rt)
	}
	a.runtime = make(map[string]*tenantRuntime)
	a.mu.Unlock()

	for _, rt := range runtimes {
		if err := rt.dispatcher.Stop(ctx); err != nil {
			a.log.WithField("error", err).Warn("tenant dispatcher did not stop cleanly")
		}
	}
	return a.central.Close()
}

// EnsureTenantRunning acquires t's database, wires its stores, and starts
// (once) the dispatcher draining its durable work queue — idempotent, safe
// to call from the upload path on every request.
func (a *Application) EnsureTenantRunning(ctx context.Context, t *domaintenant.Tenant) (storage.Stores, error) {
	a.mu.Lock()
	if rt, ok := a.runtime[t.ID]; ok {
		a.mu.Unlock()
		return rt.stores, nil
	}
	a.mu.Unlock()

	db, err := a.connections.Acquire(ctx, t)
	if err != nil {
		return storage.Stores{}, err
	}
	stores := postgres.New(db).Stores()

	resolver := credentials.New(stores.Credentials, a.masterKey, a.cfg.CredentialCacheTTL, a.cfg.CredentialCacheTTL*2)
	hookMgr := hooks.NewManager(a.log)
	hookMgr.Register(&hooks.TimeTrackingHook{})
	hookMgr.Register(hooks.NewWebhookNotifyHook(stores.Jobs, stores.Campaigns, a.log))

	enqRef := &dispatcherEnqueuer{}
	orch := pipeline.NewOrchestrator(a.registry, hookMgr, enqRef, backoffAdapter{a.retryCfg}, a.log)

	tResolver := singleTenantResolver{
		tenant:   t,
		stores:   stores,
		resolver: resolver,
		blobs:    a.blobs,
	}
	dispatcher := pipeline.NewDispatcher(stores.Queue, orch, tResolver, a.cfg.DispatcherPollInterval, a.cfg.DispatcherBatchSize, a.cfg.WorkerPoolSize, a.log)
	enqRef.d = dispatcher

	if err := dispatcher.Start(ctx); err != nil {
		return storage.Stores{}, fmt.Errorf("start dispatcher for tenant %s: %w", t.ID, err)
	}

	a.mu.Lock()
	a.runtime[t.ID] = &tenantRuntime{db: db, stores: stores, dispatcher: dispatcher}
	a.mu.Unlock()

	return stores, nil
}

// Importer builds a campaign definition importer bound to tenant t's own
// database, acquiring/starting it first if necessary.
func (a *Application) Importer(ctx context.Context, t *domaintenant.Tenant) (*importer.Importer, error) {
	stores, err := a.EnsureTenantRunning(ctx, t)
	if err != nil {
		return nil, err
	}
	return &importer.Importer{Campaigns: stores.Campaigns, Registry: a.registry}, nil
}

// EnqueueStep hands a step off to t's dispatcher, bringing the tenant's
// runtime up first if this is its first job. The HTTP upload action uses
// this to schedule a freshly created DocumentJob's first step.
func (a *Application) EnqueueStep(ctx context.Context, t *domaintenant.Tenant, jobID string, stepIndex, attempt int, availableAt time.Time) error {
	if _, err := a.EnsureTenantRunning(ctx, t); err != nil {
		return err
	}
	a.mu.Lock()
	rt := a.runtime[t.ID]
	a.mu.Unlock()
	return rt.dispatcher.EnqueueStep(ctx, t.ID, jobID, stepIndex, attempt, availableAt)
}

// dispatcherEnqueuer breaks the Orchestrator<->Dispatcher construction
// cycle: the orchestrator is built before its dispatcher exists, so it
// holds this indirection and calls through to the real dispatcher once
// EnsureTenantRunning assigns it.
type dispatcherEnqueuer struct {
	d *pipeline.Dispatcher
}

func (e *dispatcherEnqueuer) EnqueueStep(ctx context.Context, tenantID, jobID string, stepIndex, attempt int, availableAt time.Time) error {
	return e.d.EnqueueStep(ctx, tenantID, jobID, stepIndex, attempt, availableAt)
}

type backoffAdapter struct{ cfg resilience.RetryConfig }

func (b backoffAdapter) NextDelay(attempt int) time.Duration {
	return resilience.NextBackoff(b.cfg, attempt)
}

// singleTenantResolver satisfies pipeline.TenantResolver for a dispatcher
// that only ever drains its own tenant's queue — every WorkUnit it sees
// already belongs to this tenant by construction, since the queue itself
// lives inside that tenant's database.
type singleTenantResolver struct {
	tenant   *domaintenant.Tenant
	stores   storage.Stores
	resolver *credentials.Resolver
	blobs    registry.BlobStorage
}

func (r singleTenantResolver) Resolve(ctx context.Context, tenantID string) (*domaintenant.Tenant, storage.Stores, *registry.ExecutionContext, error) {
	return r.tenant, r.stores, &registry.ExecutionContext{
		Credentials: r.resolver,
		Storage:     r.blobs,
	}, nil
}

func decodeMasterKey(value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("credential master key is empty")
	}
	if decoded, err := hex.DecodeString(value); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	return nil, fmt.Errorf("expected a 32-byte key, hex or base64 encoded")
}
