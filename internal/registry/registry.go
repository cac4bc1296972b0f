package registry

import (
	"context"
	"sync"

	"github.com/docuflow/enginecore/internal/core"
	"github.com/docuflow/enginecore/internal/domain/processor"
	"github.com/docuflow/enginecore/internal/storage"
)

// Registry indexes Processor implementations by slug. Built-in processors
// are registered once at startup via Register; the index holds only
// compiled-in processors and is never augmented from tenant-defined
// processor rows.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]Processor
}

func New() *Registry {
	return &Registry{procs: make(map[string]Processor)}
}

// Register adds a compiled-in Processor, indexed by its own ID().
func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[p.ID()] = p
}

// Resolve looks up a processor by step type slug in the in-process index.
// A slug missing there is reported as core.ErrProcessorNotRegistered, even
// when the tenant's processors table has a row for it: such a row has no
// Go implementation to run, and nothing is added to the index from it.
func (r *Registry) Resolve(ctx context.Context, slug string, processors storage.ProcessorStore) (Processor, error) {
	r.mu.RLock()
	p, ok := r.procs[slug]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	if processors != nil {
		if _, err := processors.GetBySlug(ctx, slug); err == nil {
			// A database-defined processor without a compiled Go
			// implementation cannot be executed here; report
			// not-registered so the orchestrator fails the job with the
			// documented error rather than panicking on a nil Processor.
			return nil, &core.ProcessorNotRegisteredError{Type: slug}
		}
	}

	return nil, &core.ProcessorNotRegisteredError{Type: slug}
}

// ListSlugs returns every slug currently registered in-process, for
// diagnostics.
func (r *Registry) ListSlugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.procs))
	for slug := range r.procs {
		out = append(out, slug)
	}
	return out
}

// Resolves reports whether slug is known to the registry, without needing
// a storage.ProcessorStore — used by the campaign importer's
// --validate-only path where no tenant handle may be bound yet.
func (r *Registry) Resolves(slug string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.procs[slug]
	return ok
}

// DescriptorFor exposes a registered processor's declared metadata so the
// HTTP metrics read model and operator tooling can surface it without
// instantiating an ExecutionContext.
func (r *Registry) DescriptorFor(slug string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[slug]
	if !ok {
		return Descriptor{}, false
	}
	return p.Describe(), true
}

// ToProcessorRow converts a registered Processor's Descriptor into a
// storage-layer processor.Processor row. Schema apply does not seed the
// tenant processors table, and nothing in the engine calls this.
func ToProcessorRow(p Processor, isSystem bool) *processor.Processor {
	d := p.Describe()
	return &processor.Processor{
		Slug:         p.ID(),
		Name:         d.Name,
		Category:     processor.Category(d.Category),
		ConfigSchema: d.ConfigSchema,
		OutputSchema: d.OutputSchema,
		IsSystem:     isSystem,
		Active:       true,
	}
}
