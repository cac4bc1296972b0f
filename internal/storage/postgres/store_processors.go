package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/docuflow/enginecore/internal/domain/processor"
	"github.com/google/uuid"
)

func (s *processorStore) GetBySlug(ctx context.Context, slug string) (*processor.Processor, error) {
	return scanProcessor(s.db.QueryRowContext(ctx, processorSelect+` WHERE slug = $1`, slug))
}

func (s *processorStore) List(ctx context.Context) ([]*processor.Processor, error) {
	rows, err := s.db.QueryContext(ctx, processorSelect+` ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*processor.Processor
	for rows.Next() {
		p, err := scanProcessor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert inserts or updates a processor row keyed by slug. The registry
// only reads this table (GetBySlug) and never writes to it.
func (s *processorStore) Upsert(ctx context.Context, p *processor.Processor) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	configJSON, err := json.Marshal(p.ConfigSchema)
	if err != nil {
		return err
	}
	outputJSON, err := json.Marshal(p.OutputSchema)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO processors (id, slug, name, category, class_ref, config_schema,
			output_schema, version, is_system, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		ON CONFLICT (slug) DO UPDATE SET
			name=EXCLUDED.name, category=EXCLUDED.category, class_ref=EXCLUDED.class_ref,
			config_schema=EXCLUDED.config_schema, output_schema=EXCLUDED.output_schema,
			version=EXCLUDED.version, is_system=EXCLUDED.is_system, active=EXCLUDED.active,
			updated_at=EXCLUDED.updated_at
	`, p.ID, p.Slug, p.Name, p.Category, p.ClassRef, configJSON, outputJSON,
		p.Version, p.IsSystem, p.Active, time.Now().UTC())
	return err
}

const processorSelect = `
	SELECT id, slug, name, category, class_ref, config_schema, output_schema,
		version, is_system, active
	FROM processors`

func scanProcessor(row rowScanner) (*processor.Processor, error) {
	var p processor.Processor
	var configRaw, outputRaw []byte
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Category, &p.ClassRef, &configRaw,
		&outputRaw, &p.Version, &p.IsSystem, &p.Active); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(configRaw, &p.ConfigSchema)
	_ = json.Unmarshal(outputRaw, &p.OutputSchema)
	return &p, nil
}
