package hooks_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/docuflow/enginecore/internal/domain/campaign"
	"github.com/docuflow/enginecore/internal/domain/job"
	"github.com/docuflow/enginecore/internal/domain/processor"
	"github.com/docuflow/enginecore/internal/hooks"
	"github.com/docuflow/enginecore/internal/storage"
	"github.com/docuflow/enginecore/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

// jobWithWebhook seeds a campaign/job pair into a fresh in-memory store so
// WebhookNotifyHook can resolve webhookURL from a ProcessorExecution's
// JobID, and returns the job id to stamp onto test executions.
func jobWithWebhook(t *testing.T, webhookURL string) (storage.Stores, string) {
	t.Helper()
	stores := memory.New().Stores()

	c := &campaign.Campaign{Name: "Invoice Intake", Type: campaign.TypeTemplate, WebhookURL: webhookURL}
	require.NoError(t, stores.Campaigns.Create(context.Background(), c))

	j := &job.DocumentJob{CampaignID: c.ID, State: job.StateRunning}
	require.NoError(t, stores.Jobs.Create(context.Background(), j))

	return stores, j.ID
}

func TestWebhookNotifyHook_PostsOnCompletionAndFailure(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	stores, jobID := jobWithWebhook(t, srv.URL)
	h := hooks.NewWebhookNotifyHook(stores.Jobs, stores.Campaigns, nil)
	exec := &processor.ProcessorExecution{JobID: jobID, ProcessorID: "ocr"}

	h.After(context.Background(), exec, nil)
	h.OnFailure(context.Background(), exec, require.AnError)

	require.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestWebhookNotifyHook_EmptyURLIsNoop(t *testing.T) {
	stores, jobID := jobWithWebhook(t, "")
	h := hooks.NewWebhookNotifyHook(stores.Jobs, stores.Campaigns, nil)
	exec := &processor.ProcessorExecution{JobID: jobID}
	require.NotPanics(t, func() {
		h.After(context.Background(), exec, nil)
	})
}

func TestWebhookNotifyHook_UnknownJobIsNoop(t *testing.T) {
	stores, _ := jobWithWebhook(t, "http://example.invalid")
	h := hooks.NewWebhookNotifyHook(stores.Jobs, stores.Campaigns, nil)
	exec := &processor.ProcessorExecution{JobID: "does-not-exist"}
	require.NotPanics(t, func() {
		h.After(context.Background(), exec, nil)
	})
}

func TestWebhookNotifyHook_BreakerOpensAfterRepeatedServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	stores, jobID := jobWithWebhook(t, srv.URL)
	h := hooks.NewWebhookNotifyHook(stores.Jobs, stores.Campaigns, nil)
	exec := &processor.ProcessorExecution{JobID: jobID}

	for i := 0; i < 5; i++ {
		h.After(context.Background(), exec, nil)
	}
	require.Equal(t, "open", h.Breaker().State().String())
}
