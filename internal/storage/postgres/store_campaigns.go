package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/docuflow/enginecore/internal/domain/campaign"
	"github.com/google/uuid"
)

func (s *campaignStore) Create(ctx context.Context, c *campaign.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	pipelineJSON, err := json.Marshal(c.PipelineConfig)
	if err != nil {
		return err
	}
	settingsJSON, err := json.Marshal(c.Settings)
	if err != nil {
		return err
	}
	mimeJSON, err := json.Marshal(c.AllowedMimeTypes)
	if err != nil {
		return err
	}
	checklistJSON, err := json.Marshal(c.ChecklistTemplate)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, slug, name, description, type, state, pipeline_config,
			settings, allowed_mime_types, max_file_size_bytes, max_concurrent_jobs,
			retention_days, checklist_template, webhook_url, published_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, c.ID, c.Slug, c.Name, c.Description, c.Type, c.State, pipelineJSON,
		settingsJSON, mimeJSON, c.MaxFileSizeBytes, c.MaxConcurrentJobs,
		c.RetentionDays, checklistJSON, c.WebhookURL, c.PublishedAt, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *campaignStore) Get(ctx context.Context, id string) (*campaign.Campaign, error) {
	return scanCampaign(s.db.QueryRowContext(ctx, campaignSelect+` WHERE id = $1`, id))
}

func (s *campaignStore) GetBySlug(ctx context.Context, slug string) (*campaign.Campaign, error) {
	return scanCampaign(s.db.QueryRowContext(ctx, campaignSelect+` WHERE slug = $1`, slug))
}

func (s *campaignStore) List(ctx context.Context, limit, offset int) ([]*campaign.Campaign, error) {
	rows, err := s.db.QueryContext(ctx, campaignSelect+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*campaign.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const campaignSelect = `
	SELECT id, slug, name, description, type, state, pipeline_config, settings,
		allowed_mime_types, max_file_size_bytes, max_concurrent_jobs, retention_days,
		checklist_template, webhook_url, published_at, created_at, updated_at
	FROM campaigns`

func scanCampaign(row rowScanner) (*campaign.Campaign, error) {
	var c campaign.Campaign
	var pipelineRaw, settingsRaw, mimeRaw, checklistRaw []byte
	if err := row.Scan(&c.ID, &c.Slug, &c.Name, &c.Description, &c.Type, &c.State,
		&pipelineRaw, &settingsRaw, &mimeRaw, &c.MaxFileSizeBytes, &c.MaxConcurrentJobs,
		&c.RetentionDays, &checklistRaw, &c.WebhookURL, &c.PublishedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(pipelineRaw, &c.PipelineConfig)
	_ = json.Unmarshal(settingsRaw, &c.Settings)
	_ = json.Unmarshal(mimeRaw, &c.AllowedMimeTypes)
	_ = json.Unmarshal(checklistRaw, &c.ChecklistTemplate)
	return &c, nil
}
