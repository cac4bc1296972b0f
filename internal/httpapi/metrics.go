package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/docuflow/enginecore/internal/tenant"
)

// metrics implements GET /documents/{uuid}/metrics, spec.md §6's
// per-processor duration/status read model.
func (h *handler) metrics(w http.ResponseWriter, r *http.Request, docUUID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("X-User-ID header required"))
		return
	}
	t, err := h.app.Catalog().ForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusForbidden, fmt.Errorf("resolve tenant: %w", err))
		return
	}
	stores, err := h.app.EnsureTenantRunning(r.Context(), t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	ctx := tenant.Bind(r.Context(), t)

	doc, err := stores.Documents.GetByUUID(ctx, docUUID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("document %q: %w", docUUID, err))
		return
	}
	j, err := stores.Jobs.GetByDocumentID(ctx, doc.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("job for document %q: %w", docUUID, err))
		return
	}
	executions, err := stores.Executions.ListByJob(ctx, j.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	type entry struct {
		ProcessorID string `json:"processor_id"`
		Processor   struct {
			Name     string `json:"name"`
			Category string `json:"category"`
		} `json:"processor"`
		DurationMS  int64      `json:"duration_ms"`
		Status      string     `json:"status"`
		CompletedAt *time.Time `json:"completed_at,omitempty"`
	}

	out := make([]entry, 0, len(executions))
	for _, e := range executions {
		var row entry
		row.ProcessorID = e.ProcessorID
		if d, ok := h.app.Registry().DescriptorFor(e.ProcessorID); ok {
			row.Processor.Name = d.Name
			row.Processor.Category = d.Category
		}
		row.DurationMS = e.DurationMS
		row.Status = string(e.State)
		row.CompletedAt = e.CompletedAt
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}
