package postgres

import (
	"context"
	"encoding/json"

	"github.com/docuflow/enginecore/internal/domain/audit"
	"github.com/google/uuid"
)

// Record is the only write path this type exposes: no Update, no Delete.
// The tenant schema's audit_logs_no_update trigger rejects any mutation
// attempt that slips past this interface, belt-and-suspenders.
func (s *auditStore) Record(ctx context.Context, e *audit.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	oldJSON, err := json.Marshal(e.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := json.Marshal(e.NewValues)
	if err != nil {
		return err
	}
	tagsJSON, err := json.Marshal(e.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, auditable_type, auditable_id, event, old_values,
			new_values, user_id, ip, tags, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, e.ID, e.AuditableType, e.AuditableID, e.Event, oldJSON, newJSON, e.UserID, e.IP,
		tagsJSON, e.CreatedAt)
	return err
}

func (s *auditStore) ListFor(ctx context.Context, auditableType, auditableID string) ([]*audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, auditable_type, auditable_id, event, old_values, new_values, user_id,
			ip, tags, created_at
		FROM audit_logs
		WHERE auditable_type = $1 AND auditable_id = $2
		ORDER BY created_at
	`, auditableType, auditableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*audit.Entry
	for rows.Next() {
		var e audit.Entry
		var oldRaw, newRaw, tagsRaw []byte
		if err := rows.Scan(&e.ID, &e.AuditableType, &e.AuditableID, &e.Event, &oldRaw, &newRaw,
			&e.UserID, &e.IP, &tagsRaw, &e.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(oldRaw, &e.OldValues)
		_ = json.Unmarshal(newRaw, &e.NewValues)
		_ = json.Unmarshal(tagsRaw, &e.Tags)
		out = append(out, &e)
	}
	return out, rows.Err()
}
