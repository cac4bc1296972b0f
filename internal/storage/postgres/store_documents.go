package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/docuflow/enginecore/internal/domain/document"
	"github.com/google/uuid"
)

func (s *documentStore) Create(ctx context.Context, d *document.Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.UUID == "" {
		d.UUID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	metaJSON, err := json.Marshal(d.Metadata)
	if err != nil {
		return err
	}
	historyJSON, err := json.Marshal(d.ProcessingHistory)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, uuid, campaign_id, original_filename, mime_type, size_bytes,
			sha256_hash, storage_path, storage_disk, state, metadata, processing_history,
			retries, error_message, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, d.ID, d.UUID, d.CampaignID, d.OriginalFilename, d.MimeType, d.SizeBytes,
		d.SHA256Hash, d.StoragePath, d.StorageDisk, d.State, metaJSON, historyJSON,
		d.Retries, d.ErrorMessage, d.CreatedAt, d.UpdatedAt)
	return err
}

func (s *documentStore) Get(ctx context.Context, id string) (*document.Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx, documentSelect+` WHERE id = $1`, id))
}

func (s *documentStore) GetByUUID(ctx context.Context, docUUID string) (*document.Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx, documentSelect+` WHERE uuid = $1`, docUUID))
}

func (s *documentStore) Update(ctx context.Context, d *document.Document) error {
	d.UpdatedAt = time.Now().UTC()
	metaJSON, err := json.Marshal(d.Metadata)
	if err != nil {
		return err
	}
	historyJSON, err := json.Marshal(d.ProcessingHistory)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE documents SET state=$2, metadata=$3, processing_history=$4, retries=$5,
			error_message=$6, updated_at=$7
		WHERE id = $1
	`, d.ID, d.State, metaJSON, historyJSON, d.Retries, d.ErrorMessage, d.UpdatedAt)
	return err
}

const documentSelect = `
	SELECT id, uuid, campaign_id, original_filename, mime_type, size_bytes, sha256_hash,
		storage_path, storage_disk, state, metadata, processing_history, retries,
		error_message, created_at, updated_at
	FROM documents`

func scanDocument(row rowScanner) (*document.Document, error) {
	var d document.Document
	var metaRaw, historyRaw []byte
	if err := row.Scan(&d.ID, &d.UUID, &d.CampaignID, &d.OriginalFilename, &d.MimeType, &d.SizeBytes,
		&d.SHA256Hash, &d.StoragePath, &d.StorageDisk, &d.State, &metaRaw, &historyRaw, &d.Retries,
		&d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(metaRaw, &d.Metadata)
	_ = json.Unmarshal(historyRaw, &d.ProcessingHistory)
	return &d, nil
}
