package postgres

import (
	"context"

	"github.com/docuflow/enginecore/internal/domain/progress"
)

func (s *progressStore) Upsert(ctx context.Context, p *progress.Progress) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_progress (job_id, stage_count, completed_stages,
			percentage_complete, current_stage_name, status, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (job_id) DO UPDATE SET
			stage_count=EXCLUDED.stage_count, completed_stages=EXCLUDED.completed_stages,
			percentage_complete=EXCLUDED.percentage_complete,
			current_stage_name=EXCLUDED.current_stage_name, status=EXCLUDED.status,
			updated_at=EXCLUDED.updated_at
	`, p.JobID, p.StageCount, p.CompletedStages, p.PercentageComplete, p.CurrentStageName,
		p.Status, p.UpdatedAt)
	return err
}

func (s *progressStore) Get(ctx context.Context, jobID string) (*progress.Progress, error) {
	var p progress.Progress
	err := s.db.QueryRowContext(ctx, `
		SELECT job_id, stage_count, completed_stages, percentage_complete,
			current_stage_name, status, updated_at
		FROM pipeline_progress WHERE job_id = $1
	`, jobID).Scan(&p.JobID, &p.StageCount, &p.CompletedStages, &p.PercentageComplete,
		&p.CurrentStageName, &p.Status, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
