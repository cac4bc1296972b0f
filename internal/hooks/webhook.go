package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/docuflow/enginecore/internal/domain/processor"
	"github.com/docuflow/enginecore/internal/logger"
	"github.com/docuflow/enginecore/internal/resilience"
	"github.com/docuflow/enginecore/internal/storage"
)

// WebhookNotifyHook posts a small JSON event to the webhook_url of the
// campaign that owns the job being executed, on completion or failure.
// This supplements spec.md §4.6 (the distillation only specifies "the
// orchestrator emits an event value"); turning that event into an outbound
// HTTP POST is within the transport Non-goal's carve-out since the event
// contract, not a full webhook-delivery subsystem, is what's being added
// here. Deliberately built on net/http directly: no richer HTTP client
// wrapper exists anywhere in the pack to ground one on.
//
// The campaign's webhook_url is resolved per call from exec.JobID rather
// than fixed at construction time, since one tenant's Manager (and
// therefore one WebhookNotifyHook) observes every campaign's jobs.
//
// Delivery is guarded by a circuit breaker: a webhook endpoint that is
// down or misconfigured shouldn't eat a request-duration timeout on
// every single processor completion for the rest of the job.
type WebhookNotifyHook struct {
	Jobs      storage.JobStore
	Campaigns storage.CampaignStore
	Client    *http.Client
	breaker   *resilience.CircuitBreaker
	log       *logger.Logger
}

func NewWebhookNotifyHook(jobs storage.JobStore, campaigns storage.CampaignStore, log *logger.Logger) *WebhookNotifyHook {
	return &WebhookNotifyHook{
		Jobs:      jobs,
		Campaigns: campaigns,
		Client:    &http.Client{Timeout: 5 * time.Second},
		breaker:   resilience.NewCircuitBreaker(resilience.DefaultBreakerConfig()),
		log:       log,
	}
}

// errWebhookServerError marks a 5xx response as a breaker failure distinct
// from a transport-level error, since both should count against the
// breaker the same way.
var errWebhookServerError = errors.New("webhook endpoint returned a server error")

// Breaker exposes the hook's circuit breaker for tests and diagnostics.
func (h *WebhookNotifyHook) Breaker() *resilience.CircuitBreaker { return h.breaker }

func (h *WebhookNotifyHook) Before(ctx context.Context, exec *processor.ProcessorExecution) {}

func (h *WebhookNotifyHook) After(ctx context.Context, exec *processor.ProcessorExecution, output map[string]any) {
	h.post(ctx, "processor.completed", exec, "")
}

func (h *WebhookNotifyHook) OnFailure(ctx context.Context, exec *processor.ProcessorExecution, failErr error) {
	h.post(ctx, "processor.failed", exec, failErr.Error())
}

func (h *WebhookNotifyHook) post(ctx context.Context, event string, exec *processor.ProcessorExecution, errMsg string) {
	url, err := h.resolveURL(ctx, exec.JobID)
	if err != nil || url == "" {
		return
	}

	body, err := json.Marshal(map[string]any{
		"event":        event,
		"job_id":       exec.JobID,
		"step_id":      exec.StepID,
		"processor_id": exec.ProcessorID,
		"error":        errMsg,
	})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	err = h.breaker.Execute(func() error {
		resp, err := h.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return errWebhookServerError
		}
		return nil
	})
	if err != nil {
		if h.log != nil {
			h.log.WithField("url", url).WithField("error", err).WithField("breaker_state", h.breaker.State().String()).Warn("webhook delivery failed")
		}
	}
}

func (h *WebhookNotifyHook) resolveURL(ctx context.Context, jobID string) (string, error) {
	j, err := h.Jobs.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	camp, err := h.Campaigns.Get(ctx, j.CampaignID)
	if err != nil {
		return "", err
	}
	return camp.WebhookURL, nil
}
