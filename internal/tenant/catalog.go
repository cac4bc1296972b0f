// Package tenant implements the Tenant Catalog (central registry) and the
// Tenant Context (process-local current-tenant binding).
package tenant

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docuflow/enginecore/internal/domain/tenant"
)

// Catalog resolves tenant identity against the central database: tenants,
// domains, and users.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

// ByID loads a Tenant by its central id.
func (c *Catalog) ByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, slug, email, status, tier, credit_balance, database_name, deleted_at
		FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

// BySlug loads a Tenant by its unique slug.
func (c *Catalog) BySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, slug, email, status, tier, credit_balance, database_name, deleted_at
		FROM tenants WHERE slug = $1`, slug)
	return scanTenant(row)
}

// ByHost resolves the tenant owning a Domain row, the entry point spec.md §6
// describes for request-time tenant identity resolution.
func (c *Catalog) ByHost(ctx context.Context, host string) (*tenant.Tenant, error) {
	var tenantID string
	if err := c.db.QueryRowContext(ctx, `SELECT tenant_id FROM domains WHERE host = $1`, host).Scan(&tenantID); err != nil {
		return nil, fmt.Errorf("resolve domain %q: %w", host, err)
	}
	return c.ByID(ctx, tenantID)
}

// ForUser resolves the tenant a user's membership is scoped to, the entry
// point for the UploadDocument action's tenant-identity hand-off
// (`authenticated_user_id` -> `tenant_id`, spec.md §6).
func (c *Catalog) ForUser(ctx context.Context, userID string) (*tenant.Tenant, error) {
	var tenantID string
	if err := c.db.QueryRowContext(ctx, `
		SELECT tenant_id FROM memberships WHERE user_id = $1 LIMIT 1`, userID).Scan(&tenantID); err != nil {
		return nil, fmt.Errorf("resolve membership for user %q: %w", userID, err)
	}
	return c.ByID(ctx, tenantID)
}

// ListActive returns every tenant in the active status, used at process
// startup to bring up one dispatcher per tenant database (spec.md's
// physical per-tenant separation means the durable work queue, like every
// other table, lives inside each tenant's own database).
func (c *Catalog) ListActive(ctx context.Context) ([]*tenant.Tenant, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, slug, email, status, tier, credit_balance, database_name, deleted_at
		FROM tenants WHERE status = $1 AND deleted_at IS NULL`, tenant.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var out []*tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var deletedAt sql.NullTime
	if err := row.Scan(&t.ID, &t.Slug, &t.Email, &t.Status, &t.Tier, &t.CreditBalance, &t.DatabaseName, &deletedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	return &t, nil
}
