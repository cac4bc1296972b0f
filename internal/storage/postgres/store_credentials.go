package postgres

import (
	"context"
	"time"

	"github.com/docuflow/enginecore/internal/domain/credential"
	"github.com/google/uuid"
)

// Find looks up a credential by its exact (key, scope, scope_ref) tuple. The
// hierarchical walk across scopes is the credentials package's job, not the
// store's — this method only ever satisfies one scope level per call.
func (s *credentialStore) Find(ctx context.Context, key string, scope credential.Scope, scopeRef string) (*credential.Credential, error) {
	return scanCredential(s.db.QueryRowContext(ctx, credentialSelect+`
		WHERE key = $1 AND scope = $2 AND scope_ref = $3 AND deleted_at IS NULL
	`, key, scope, scopeRef))
}

func (s *credentialStore) Put(ctx context.Context, c *credential.Credential) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, key, encrypted_value, scope, scope_ref, expires_at,
			last_used_at, deleted_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (key, scope, scope_ref) DO UPDATE SET
			encrypted_value=EXCLUDED.encrypted_value, expires_at=EXCLUDED.expires_at,
			deleted_at=NULL, updated_at=EXCLUDED.updated_at
	`, c.ID, c.Key, c.EncryptedValue, c.Scope, c.ScopeRef, c.ExpiresAt,
		c.LastUsedAt, c.DeletedAt, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *credentialStore) TouchLastUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE credentials SET last_used_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	return err
}

const credentialSelect = `
	SELECT id, key, encrypted_value, scope, scope_ref, expires_at, last_used_at,
		deleted_at, created_at, updated_at
	FROM credentials`

func scanCredential(row rowScanner) (*credential.Credential, error) {
	var c credential.Credential
	if err := row.Scan(&c.ID, &c.Key, &c.EncryptedValue, &c.Scope, &c.ScopeRef, &c.ExpiresAt,
		&c.LastUsedAt, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
