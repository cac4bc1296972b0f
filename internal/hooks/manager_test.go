package hooks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/docuflow/enginecore/internal/domain/processor"
	"github.com/docuflow/enginecore/internal/hooks"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) Before(ctx context.Context, exec *processor.ProcessorExecution) {
	r.events = append(r.events, "before")
}
func (r *recordingObserver) After(ctx context.Context, exec *processor.ProcessorExecution, output map[string]any) {
	r.events = append(r.events, "after")
}
func (r *recordingObserver) OnFailure(ctx context.Context, exec *processor.ProcessorExecution, failErr error) {
	r.events = append(r.events, "on_failure")
}

type panickingObserver struct{}

func (panickingObserver) Before(ctx context.Context, exec *processor.ProcessorExecution) { panic("boom") }
func (panickingObserver) After(ctx context.Context, exec *processor.ProcessorExecution, output map[string]any) {
	panic("boom")
}
func (panickingObserver) OnFailure(ctx context.Context, exec *processor.ProcessorExecution, failErr error) {
	panic("boom")
}

func TestManager_RunsInRegistrationOrder(t *testing.T) {
	m := hooks.NewManager(nil)
	first := &recordingObserver{}
	second := &recordingObserver{}
	m.Register(first)
	m.Register(second)

	exec := &processor.ProcessorExecution{}
	m.Before(context.Background(), exec)
	m.After(context.Background(), exec, nil)

	require.Equal(t, []string{"before", "after"}, first.events)
	require.Equal(t, []string{"before", "after"}, second.events)
}

func TestManager_PanicDoesNotInterruptPipeline(t *testing.T) {
	m := hooks.NewManager(nil)
	m.Register(panickingObserver{})
	after := &recordingObserver{}
	m.Register(after)

	exec := &processor.ProcessorExecution{}
	require.NotPanics(t, func() {
		m.Before(context.Background(), exec)
		m.OnFailure(context.Background(), exec, errors.New("fail"))
	})
	require.Equal(t, []string{"before", "on_failure"}, after.events)
}

func TestTimeTrackingHook_ComputesDuration(t *testing.T) {
	h := hooks.TimeTrackingHook{}
	exec := &processor.ProcessorExecution{}
	h.Before(context.Background(), exec)
	require.NotNil(t, exec.StartedAt)

	h.After(context.Background(), exec, nil)
	require.NotNil(t, exec.CompletedAt)
	require.GreaterOrEqual(t, exec.DurationMS, int64(0))
}
