package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/docuflow/enginecore/internal/storage"
	"github.com/lib/pq"
)

func (s *queueStore) Enqueue(ctx context.Context, unit storage.WorkUnit, availableAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_queue (tenant_id, job_id, step_index, attempt, available_at)
		VALUES ($1,$2,$3,$4,$5)
	`, unit.TenantID, unit.JobID, unit.StepIndex, unit.Attempt, availableAt)
	return err
}

// Dequeue claims up to `limit` available units with SELECT ... FOR UPDATE
// SKIP LOCKED, the mechanism spec.md §4.8 names for letting many dispatcher
// workers drain the same table queue without contending on the same rows.
// Claimed rows are stamped locked_by/locked_at rather than deleted so a
// worker that crashes mid-step leaves visible evidence of what it had
// claimed.
func (s *queueStore) Dequeue(ctx context.Context, workerID string, limit int) ([]storage.WorkUnit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, tenant_id, job_id, step_index, attempt
		FROM work_queue
		WHERE locked_by IS NULL AND available_at <= now()
		ORDER BY available_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}

	var claimed []storage.WorkUnit
	for rows.Next() {
		var u storage.WorkUnit
		if err := rows.Scan(&u.ID, &u.TenantID, &u.JobID, &u.StepIndex, &u.Attempt); err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(claimed) == 0 {
		return nil, tx.Commit()
	}

	ids := make([]int64, len(claimed))
	for i, u := range claimed {
		ids[i] = u.ID
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE work_queue SET locked_by = $1, locked_at = now() WHERE id = ANY($2)
	`, workerID, pq.Array(ids)); err != nil {
		return nil, err
	}

	return claimed, tx.Commit()
}

func (s *queueStore) Ack(ctx context.Context, unit storage.WorkUnit) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM work_queue WHERE id = $1`, unit.ID)
	return err
}

func (s *queueStore) Depth(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM work_queue WHERE tenant_id = $1 AND locked_by IS NULL
	`, tenantID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

// ReapStale reclaims work_queue rows a crashed or killed worker locked but
// never Ack'd, so the stale-job reap tick (§4.8) can hand them back to a
// healthy worker instead of leaving them stuck forever.
func (s *queueStore) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE work_queue SET locked_by = NULL, locked_at = NULL
		WHERE locked_by IS NOT NULL AND locked_at < $1
	`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
