package postgres

import (
	"context"
	"encoding/json"

	"github.com/docuflow/enginecore/internal/domain/processor"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CreateIfAbsent relies on the UNIQUE (job_id, step_id, attempt) constraint
// from the tenant schema migration: a duplicate insert returns a unique
// violation, at which point the existing row is fetched and returned with
// created=false. This is the durable half of the idempotent-execution
// guarantee spec.md §4.7/§8 requires; the in-memory store's map-keyed
// CreateIfAbsent is the equivalent for tests.
func (s *executionStore) CreateIfAbsent(ctx context.Context, e *processor.ProcessorExecution) (bool, *processor.ProcessorExecution, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	outputJSON, err := json.Marshal(e.Output)
	if err != nil {
		return false, nil, err
	}
	configJSON, err := json.Marshal(e.ConfigSnapshot)
	if err != nil {
		return false, nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processor_executions (id, job_id, processor_id, step_id, attempt, state,
			input_digest, output, config_snapshot, tokens_used, cost_credits, duration_ms,
			started_at, completed_at, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, e.ID, e.JobID, e.ProcessorID, e.StepID, e.Attempt, e.State, e.InputDigest,
		outputJSON, configJSON, e.TokensUsed, e.CostCredits, e.DurationMS,
		e.StartedAt, e.CompletedAt, e.Error)
	if err == nil {
		return true, e, nil
	}

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		existing, getErr := scanExecution(s.db.QueryRowContext(ctx, executionSelect+
			` WHERE job_id = $1 AND step_id = $2 AND attempt = $3`, e.JobID, e.StepID, e.Attempt))
		if getErr != nil {
			return false, nil, getErr
		}
		return false, existing, nil
	}
	return false, nil, err
}

func (s *executionStore) Update(ctx context.Context, e *processor.ProcessorExecution) error {
	outputJSON, err := json.Marshal(e.Output)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE processor_executions
		SET state=$2, output=$3, tokens_used=$4, cost_credits=$5, duration_ms=$6,
			completed_at=$7, error=$8
		WHERE id = $1
	`, e.ID, e.State, outputJSON, e.TokensUsed, e.CostCredits, e.DurationMS, e.CompletedAt, e.Error)
	return err
}

func (s *executionStore) ListByJob(ctx context.Context, jobID string) ([]*processor.ProcessorExecution, error) {
	rows, err := s.db.QueryContext(ctx, executionSelect+` WHERE job_id = $1 ORDER BY step_id, attempt`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*processor.ProcessorExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const executionSelect = `
	SELECT id, job_id, processor_id, step_id, attempt, state, input_digest, output,
		config_snapshot, tokens_used, cost_credits, duration_ms, started_at, completed_at, error
	FROM processor_executions`

func scanExecution(row rowScanner) (*processor.ProcessorExecution, error) {
	var e processor.ProcessorExecution
	var outputRaw, configRaw []byte
	if err := row.Scan(&e.ID, &e.JobID, &e.ProcessorID, &e.StepID, &e.Attempt, &e.State,
		&e.InputDigest, &outputRaw, &configRaw, &e.TokensUsed, &e.CostCredits, &e.DurationMS,
		&e.StartedAt, &e.CompletedAt, &e.Error); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(outputRaw, &e.Output)
	_ = json.Unmarshal(configRaw, &e.ConfigSnapshot)
	return &e, nil
}
