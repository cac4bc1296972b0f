package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docuflow/enginecore/internal/domain/campaign"
	"github.com/docuflow/enginecore/internal/domain/document"
	"github.com/docuflow/enginecore/internal/domain/job"
	"github.com/docuflow/enginecore/internal/domain/usage"
	"github.com/docuflow/enginecore/internal/statemachine"
	"github.com/docuflow/enginecore/internal/storage"
	"github.com/docuflow/enginecore/internal/tenant"
	"github.com/google/uuid"
)

const maxUploadMemory = 32 << 20 // 32 MiB held in memory before multipart spills to disk

// upload implements the UploadDocument action (spec.md §6): resolve the
// caller's tenant from X-User-ID, validate the file against the target
// campaign's mime/size constraints, persist the Document under tenant-
// scoped storage, create its DocumentJob at step 0, and hand the first
// step to the dispatcher.
func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("X-User-ID header required"))
		return
	}
	campaignSlug := r.URL.Query().Get("campaign")
	if campaignSlug == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("campaign query parameter required"))
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

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing file field: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	camp, err := stores.Campaigns.GetBySlug(ctx, campaignSlug)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("campaign %q: %w", campaignSlug, err))
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if err := validateUpload(camp, mimeType, int64(len(data))); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	doc, err := h.createDocument(ctx, stores, t.ID, camp, header.Filename, mimeType, data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	j, err := h.createJob(ctx, stores, doc, camp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := stores.Usage.Record(ctx, &usage.Event{
		Type:       usage.TypeUpload,
		Units:      1,
		CampaignID: camp.ID,
		DocumentID: doc.ID,
		OccurredAt: time.Now(),
	}); err != nil {
		h.log.WithTenant(t.ID).WithError(err).Warn("failed to record upload usage event")
	}

	if err := h.app.EnqueueStep(ctx, t, j.ID, j.CurrentStepIndex, 0, time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("enqueue first step: %w", err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"document_uuid": doc.UUID,
		"job_uuid":      j.UUID,
		"status":        string(j.State),
	})
}

func validateUpload(camp *campaign.Campaign, mimeType string, size int64) error {
	maxSize := camp.MaxFileSizeBytes
	if maxSize <= 0 {
		maxSize = campaign.DefaultMaxFileSizeBytes
	}
	if size > maxSize {
		return fmt.Errorf("file size %d exceeds campaign limit %d", size, maxSize)
	}
	allowed := camp.AllowedMimeTypes
	if len(allowed) == 0 {
		allowed = campaign.DefaultAllowedMimeTypes
	}
	for _, a := range allowed {
		if a == mimeType {
			return nil
		}
	}
	return fmt.Errorf("mime type %q not allowed for this campaign", mimeType)
}

func (h *handler) createDocument(ctx context.Context, stores storage.Stores, tenantID string, camp *campaign.Campaign, filename, mimeType string, data []byte) (*document.Document, error) {
	sum := sha256.Sum256(data)
	docID := uuid.NewString()
	now := time.Now()
	storagePath := fmt.Sprintf("%s/%s/%s/%s_%s", tenantID, now.Format("2006"), now.Format("01"), docID, filename)

	if err := h.app.Storage().Write(ctx, "documents", storagePath, data); err != nil {
		return nil, fmt.Errorf("write document bytes: %w", err)
	}

	doc := &document.Document{
		ID:               docID,
		CampaignID:       camp.ID,
		OriginalFilename: filename,
		MimeType:         mimeType,
		SizeBytes:        int64(len(data)),
		SHA256Hash:       hex.EncodeToString(sum[:]),
		StoragePath:      storagePath,
		StorageDisk:      "documents",
		State:            document.StatePending,
	}
	if err := stores.Documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if err := statemachine.Check(statemachine.MachineDocument, string(document.StatePending), string(document.StateQueued)); err != nil {
		return nil, err
	}
	doc.State = document.StateQueued
	if err := stores.Documents.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("queue document: %w", err)
	}
	return doc, nil
}

func (h *handler) createJob(ctx context.Context, stores storage.Stores, doc *document.Document, camp *campaign.Campaign) (*job.DocumentJob, error) {
	if len(camp.PipelineConfig.Processors) == 0 {
		return nil, fmt.Errorf("campaign %q has no pipeline steps", camp.Slug)
	}
	j := &job.DocumentJob{
		DocumentID:       doc.ID,
		CampaignID:       camp.ID,
		State:            job.StatePending,
		PipelineSnapshot: camp.PipelineConfig,
		CurrentStepIndex: 0,
		MaxAttempts:      h.app.DefaultMaxAttempts(),
	}
	if err := stores.Jobs.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if err := statemachine.Check(statemachine.MachineDocumentJob, string(job.StatePending), string(job.StateQueued)); err != nil {
		return nil, err
	}
	prior := j.State
	j.State = job.StateQueued
	ok, err := stores.Jobs.CompareAndUpdate(ctx, j, prior)
	if err != nil {
		return nil, fmt.Errorf("queue job: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("job %s was modified concurrently while queuing", j.ID)
	}
	return j, nil
}
