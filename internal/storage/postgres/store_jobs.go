package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/docuflow/enginecore/internal/domain/job"
	"github.com/google/uuid"
)

func (s *jobStore) Create(ctx context.Context, j *job.DocumentJob) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.UUID == "" {
		j.UUID = uuid.NewString()
	}
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now

	snapshotJSON, err := json.Marshal(j.PipelineSnapshot)
	if err != nil {
		return err
	}
	errLogJSON, err := json.Marshal(j.ErrorLog)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO document_jobs (id, uuid, document_id, campaign_id, state, pipeline_snapshot,
			current_step_index, attempts, max_attempts, error_log, started_at, completed_at,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, j.ID, j.UUID, j.DocumentID, j.CampaignID, j.State, snapshotJSON,
		j.CurrentStepIndex, j.Attempts, j.MaxAttempts, errLogJSON, j.StartedAt, j.CompletedAt,
		j.CreatedAt, j.UpdatedAt)
	return err
}

func (s *jobStore) Get(ctx context.Context, id string) (*job.DocumentJob, error) {
	return scanJob(s.db.QueryRowContext(ctx, jobSelect+` WHERE id = $1`, id))
}

func (s *jobStore) GetByUUID(ctx context.Context, jobUUID string) (*job.DocumentJob, error) {
	return scanJob(s.db.QueryRowContext(ctx, jobSelect+` WHERE uuid = $1`, jobUUID))
}

func (s *jobStore) GetByDocumentID(ctx context.Context, documentID string) (*job.DocumentJob, error) {
	return scanJob(s.db.QueryRowContext(ctx, jobSelect+` WHERE document_id = $1 ORDER BY created_at DESC LIMIT 1`, documentID))
}

// CompareAndUpdate persists j only if the row's current state still equals
// expectedState, giving the single-writer discipline spec.md §5 requires for
// (job_id, step_index) ownership: two workers racing to advance the same job
// can both attempt this update, but only the one whose expectedState still
// matches the persisted row succeeds.
func (s *jobStore) CompareAndUpdate(ctx context.Context, j *job.DocumentJob, expectedState job.State) (bool, error) {
	j.UpdatedAt = time.Now().UTC()
	snapshotJSON, err := json.Marshal(j.PipelineSnapshot)
	if err != nil {
		return false, err
	}
	errLogJSON, err := json.Marshal(j.ErrorLog)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE document_jobs
		SET state=$2, current_step_index=$3, attempts=$4, error_log=$5,
			started_at=$6, completed_at=$7, updated_at=$8
		WHERE id = $1 AND state = $9
	`, j.ID, j.State, j.CurrentStepIndex, j.Attempts, errLogJSON,
		j.StartedAt, j.CompletedAt, j.UpdatedAt, expectedState)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const jobSelect = `
	SELECT id, uuid, document_id, campaign_id, state, pipeline_snapshot, current_step_index,
		attempts, max_attempts, error_log, started_at, completed_at, created_at, updated_at
	FROM document_jobs`

func scanJob(row rowScanner) (*job.DocumentJob, error) {
	var j job.DocumentJob
	var snapshotRaw, errLogRaw []byte
	if err := row.Scan(&j.ID, &j.UUID, &j.DocumentID, &j.CampaignID, &j.State, &snapshotRaw,
		&j.CurrentStepIndex, &j.Attempts, &j.MaxAttempts, &errLogRaw, &j.StartedAt, &j.CompletedAt,
		&j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(snapshotRaw, &j.PipelineSnapshot)
	_ = json.Unmarshal(errLogRaw, &j.ErrorLog)
	return &j, nil
}
