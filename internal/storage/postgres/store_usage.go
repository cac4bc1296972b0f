package postgres

import (
	"context"

	"github.com/docuflow/enginecore/internal/domain/usage"
	"github.com/google/uuid"
)

// Record inserts a usage event. There is deliberately no update/delete path:
// usage_events is an append-only ledger, metered once per occurrence.
func (s *usageStore) Record(ctx context.Context, e *usage.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_events (id, type, units, cost_credits, campaign_id, document_id,
			job_id, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, e.ID, e.Type, e.Units, e.CostCredits, e.CampaignID, e.DocumentID, e.JobID, e.OccurredAt)
	return err
}
