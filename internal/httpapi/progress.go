package httpapi

import (
	"fmt"
	"net/http"

	"github.com/docuflow/enginecore/internal/tenant"
)

// progress implements GET /documents/{uuid}/progress, spec.md §6's
// client-polled read model.
func (h *handler) progress(w http.ResponseWriter, r *http.Request, docUUID string) {
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
	p, err := stores.Progress.Get(ctx, j.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("progress for document %q: %w", docUUID, err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":              p.Status,
		"percentage_complete": p.PercentageComplete,
		"stage_count":         p.StageCount,
		"completed_stages":    p.CompletedStages,
		"current_stage":       p.CurrentStageName,
		"updated_at":          p.UpdatedAt,
	})
}
