// Package hooks implements the Hook Manager from spec.md §4.6: an ordered
// before/after/on_failure observer chain invoked around every processor
// execution, generalized from the teacher's
// internal/app/core.ObservationHooks/StartObservation start/complete pair
// into a richer three-callback interface plus a registration-ordered list.
package hooks

import (
	"context"
	"time"

	"github.com/docuflow/enginecore/internal/domain/processor"
	"github.com/docuflow/enginecore/internal/logger"
)

// Observer is implemented by every hook. Before runs just before
// processor.Execute is invoked; After runs on a successful execution;
// OnFailure runs whenever an execution fails, including a retriable failure
// for which the orchestrator will schedule another attempt.
type Observer interface {
	Before(ctx context.Context, exec *processor.ProcessorExecution)
	After(ctx context.Context, exec *processor.ProcessorExecution, output map[string]any)
	OnFailure(ctx context.Context, exec *processor.ProcessorExecution, failErr error)
}

// Manager runs Observers in registration order. A panic inside one
// observer is recovered, logged, and must not interrupt the pipeline —
// the same guarantee spec.md §4.6 states in prose.
type Manager struct {
	observers []Observer
	log       *logger.Logger
}

func NewManager(log *logger.Logger) *Manager {
	return &Manager{log: log}
}

func (m *Manager) Register(o Observer) {
	m.observers = append(m.observers, o)
}

func (m *Manager) Before(ctx context.Context, exec *processor.ProcessorExecution) {
	for _, o := range m.observers {
		m.safely(func() { o.Before(ctx, exec) }, "before")
	}
}

func (m *Manager) After(ctx context.Context, exec *processor.ProcessorExecution, output map[string]any) {
	for _, o := range m.observers {
		m.safely(func() { o.After(ctx, exec, output) }, "after")
	}
}

func (m *Manager) OnFailure(ctx context.Context, exec *processor.ProcessorExecution, failErr error) {
	for _, o := range m.observers {
		m.safely(func() { o.OnFailure(ctx, exec, failErr) }, "on_failure")
	}
}

func (m *Manager) safely(fn func(), phase string) {
	defer func() {
		if r := recover(); r != nil && m.log != nil {
			m.log.WithField("phase", phase).WithField("panic", r).Error("hook panicked, continuing pipeline")
		}
	}()
	fn()
}

// TimeTrackingHook is the baseline observer spec.md §4.6 names: it stamps
// StartedAt on Before and computes DurationMS on After/OnFailure.
type TimeTrackingHook struct{}

func (TimeTrackingHook) Before(ctx context.Context, exec *processor.ProcessorExecution) {
	now := time.Now().UTC()
	exec.StartedAt = &now
}

func (TimeTrackingHook) After(ctx context.Context, exec *processor.ProcessorExecution, output map[string]any) {
	stampDuration(exec)
}

func (TimeTrackingHook) OnFailure(ctx context.Context, exec *processor.ProcessorExecution, failErr error) {
	stampDuration(exec)
}

func stampDuration(exec *processor.ProcessorExecution) {
	if exec.StartedAt == nil {
		return
	}
	now := time.Now().UTC()
	exec.CompletedAt = &now
	exec.DurationMS = now.Sub(*exec.StartedAt).Milliseconds()
}
