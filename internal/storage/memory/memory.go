// Package memory is a thread-safe in-memory implementation of every
// internal/storage interface, intended for tests and local development —
// grounded on the teacher's internal/app/storage.Memory.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docuflow/enginecore/internal/domain/audit"
	"github.com/docuflow/enginecore/internal/domain/campaign"
	"github.com/docuflow/enginecore/internal/domain/credential"
	"github.com/docuflow/enginecore/internal/domain/document"
	"github.com/docuflow/enginecore/internal/domain/job"
	"github.com/docuflow/enginecore/internal/domain/processor"
	"github.com/docuflow/enginecore/internal/domain/progress"
	"github.com/docuflow/enginecore/internal/domain/usage"
	"github.com/docuflow/enginecore/internal/storage"
)

// Store is a single tenant's in-memory database.
type Store struct {
	mu sync.RWMutex

	nextID int64

	campaigns  map[string]*campaign.Campaign
	documents  map[string]*document.Document
	jobs       map[string]*job.DocumentJob
	processors map[string]*processor.Processor
	executions map[string]*processor.ProcessorExecution
	credentials map[string]*credential.Credential
	usageEvents []*usage.Event
	auditLog    []*audit.Entry
	progress    map[string]*progress.Progress
	queue       []*storage.WorkUnit
}

func New() *Store {
	return &Store{
		nextID:      1,
		campaigns:   make(map[string]*campaign.Campaign),
		documents:   make(map[string]*document.Document),
		jobs:        make(map[string]*job.DocumentJob),
		processors:  make(map[string]*processor.Processor),
		executions:  make(map[string]*processor.ProcessorExecution),
		credentials: make(map[string]*credential.Credential),
		progress:    make(map[string]*progress.Progress),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// Stores builds a storage.Stores bundle backed entirely by this in-memory
// tenant database.
func (s *Store) Stores() storage.Stores {
	return storage.Stores{
		Campaigns:   (*campaignStore)(s),
		Documents:   (*documentStore)(s),
		Jobs:        (*jobStore)(s),
		Processors:  (*processorStore)(s),
		Executions:  (*executionStore)(s),
		Credentials: (*credentialStore)(s),
		Usage:       (*usageStore)(s),
		Audit:       (*auditStore)(s),
		Progress:    (*progressStore)(s),
		Queue:       (*queueStore)(s),
	}
}

// --- CampaignStore -----------------------------------------------------

type campaignStore Store

func (s *campaignStore) Create(_ context.Context, c *campaign.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = (*Store)(s).nextIDLocked()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *campaignStore) Get(_ context.Context, id string) (*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s: not found", id)
	}
	cp := *c
	return &cp, nil
}

func (s *campaignStore) GetBySlug(_ context.Context, slug string) (*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.campaigns {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("campaign with slug %s: not found", slug)
}

func (s *campaignStore) List(_ context.Context, limit, offset int) ([]*campaign.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*campaign.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		cp := *c
		out = append(out, &cp)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// --- DocumentStore -------------------------------------------------------

type documentStore Store

func (s *documentStore) Create(_ context.Context, d *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = (*Store)(s).nextIDLocked()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	cp := *d
	s.documents[d.ID] = &cp
	return nil
}

func (s *documentStore) Get(_ context.Context, id string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: not found", id)
	}
	cp := *d
	return &cp, nil
}

func (s *documentStore) GetByUUID(_ context.Context, uuid string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.documents {
		if d.UUID == uuid {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("document with uuid %s: not found", uuid)
}

func (s *documentStore) Update(_ context.Context, d *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[d.ID]; !ok {
		return fmt.Errorf("document %s: not found", d.ID)
	}
	d.UpdatedAt = time.Now().UTC()
	cp := *d
	s.documents[d.ID] = &cp
	return nil
}

// --- JobStore --------------------------------------------------------

type jobStore Store

func (s *jobStore) Create(_ context.Context, j *job.DocumentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == "" {
		j.ID = (*Store)(s).nextIDLocked()
	}
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *jobStore) Get(_ context.Context, id string) (*job.DocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: not found", id)
	}
	cp := *j
	return &cp, nil
}

func (s *jobStore) GetByUUID(_ context.Context, uuid string) (*job.DocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.jobs {
		if j.UUID == uuid {
			cp := *j
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("job with uuid %s: not found", uuid)
}

func (s *jobStore) GetByDocumentID(_ context.Context, documentID string) (*job.DocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *job.DocumentJob
	for _, j := range s.jobs {
		if j.DocumentID != documentID {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("job for document %s: not found", documentID)
	}
	cp := *latest
	return &cp, nil
}

// CompareAndUpdate is the in-memory stand-in for the Postgres conditional
// UPDATE that enforces single-writer discipline per (job_id, step_index):
// under the store-wide mutex, it checks the persisted state still matches
// expectedState before committing j.
func (s *jobStore) CompareAndUpdate(_ context.Context, j *job.DocumentJob, expectedState job.State) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[j.ID]
	if !ok {
		return false, fmt.Errorf("job %s: not found", j.ID)
	}
	if current.State != expectedState {
		return false, nil
	}
	j.UpdatedAt = time.Now().UTC()
	cp := *j
	s.jobs[j.ID] = &cp
	return true, nil
}

// --- ProcessorStore -----------------------------------------------------

type processorStore Store

func (s *processorStore) GetBySlug(_ context.Context, slug string) (*processor.Processor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.processors[slug]
	if !ok {
		return nil, fmt.Errorf("processor %s: not found", slug)
	}
	cp := *p
	return &cp, nil
}

func (s *processorStore) List(_ context.Context) ([]*processor.Processor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*processor.Processor, 0, len(s.processors))
	for _, p := range s.processors {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *processorStore) Upsert(_ context.Context, p *processor.Processor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = (*Store)(s).nextIDLocked()
	}
	cp := *p
	s.processors[p.Slug] = &cp
	return nil
}

// --- ExecutionStore -----------------------------------------------------

type executionStore Store

func (s *executionStore) CreateIfAbsent(_ context.Context, e *processor.ProcessorExecution) (bool, *processor.ProcessorExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := e.IdempotencyKey()
	if existing, ok := s.executions[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	if e.ID == "" {
		e.ID = (*Store)(s).nextIDLocked()
	}
	cp := *e
	s.executions[key] = &cp
	return true, nil, nil
}

func (s *executionStore) Update(_ context.Context, e *processor.ProcessorExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := e.IdempotencyKey()
	if _, ok := s.executions[key]; !ok {
		return fmt.Errorf("execution %s: not found", key)
	}
	cp := *e
	s.executions[key] = &cp
	return nil
}

func (s *executionStore) ListByJob(_ context.Context, jobID string) ([]*processor.ProcessorExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*processor.ProcessorExecution
	for _, e := range s.executions {
		if e.JobID == jobID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- CredentialStore -----------------------------------------------------

type credentialStore Store

func credKey(key string, scope credential.Scope, scopeRef string) string {
	return string(scope) + "|" + scopeRef + "|" + key
}

func (s *credentialStore) Find(_ context.Context, key string, scope credential.Scope, scopeRef string) (*credential.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[credKey(key, scope, scopeRef)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *credentialStore) Put(_ context.Context, c *credential.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = (*Store)(s).nextIDLocked()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	s.credentials[credKey(c.Key, c.Scope, c.ScopeRef)] = &cp
	return nil
}

func (s *credentialStore) TouchLastUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.credentials {
		if c.ID == id {
			now := time.Now().UTC()
			c.LastUsedAt = &now
			return nil
		}
	}
	return fmt.Errorf("credential %s: not found", id)
}

// --- UsageStore -----------------------------------------------------

type usageStore Store

func (s *usageStore) Record(_ context.Context, e *usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = (*Store)(s).nextIDLocked()
	}
	cp := *e
	s.usageEvents = append(s.usageEvents, &cp)
	return nil
}

// --- AuditStore -----------------------------------------------------

type auditStore Store

func (s *auditStore) Record(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = (*Store)(s).nextIDLocked()
	}
	e.CreatedAt = time.Now().UTC()
	cp := *e
	s.auditLog = append(s.auditLog, &cp)
	return nil
}

func (s *auditStore) ListFor(_ context.Context, auditableType, auditableID string) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*audit.Entry
	for _, e := range s.auditLog {
		if e.AuditableType == auditableType && e.AuditableID == auditableID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- ProgressStore -----------------------------------------------------

type progressStore Store

func (s *progressStore) Upsert(_ context.Context, p *progress.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.UpdatedAt = time.Now().UTC()
	s.progress[p.JobID] = &cp
	return nil
}

func (s *progressStore) Get(_ context.Context, jobID string) (*progress.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[jobID]
	if !ok {
		return nil, fmt.Errorf("progress for job %s: not found", jobID)
	}
	cp := *p
	return &cp, nil
}

// --- QueueStore -----------------------------------------------------

type queueStore Store

func (s *queueStore) Enqueue(_ context.Context, unit storage.WorkUnit, availableAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if unit.ID == 0 {
		unit.ID = s.nextID
		s.nextID++
	}
	cp := unit
	s.queue = append(s.queue, &cp)
	_ = availableAt // in-memory queue has no delay scheduling; a unit is dequeueable immediately
	return nil
}

func (s *queueStore) Dequeue(_ context.Context, workerID string, limit int) ([]storage.WorkUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []storage.WorkUnit
	var remaining []*storage.WorkUnit
	for _, u := range s.queue {
		if len(claimed) < limit {
			claimed = append(claimed, *u)
			continue
		}
		remaining = append(remaining, u)
	}
	s.queue = remaining
	return claimed, nil
}

func (s *queueStore) Ack(_ context.Context, unit storage.WorkUnit) error {
	return nil // already removed at Dequeue time in this simplified in-memory model
}

func (s *queueStore) Depth(_ context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.queue {
		if u.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// ReapStale is a no-op here: this simplified in-memory queue removes a unit
// from s.queue at Dequeue time rather than marking it locked, so there is
// nothing stuck-in-place for a crashed worker to leave behind.
func (s *queueStore) ReapStale(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}
