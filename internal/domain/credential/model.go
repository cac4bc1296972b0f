// Package credential holds the Credential entity and the scope vocabulary
// the Credential Store's hierarchical resolution algorithm searches.
package credential

import "time"

// Scope narrows from broadest (system) to narrowest (processor); resolution
// searches narrowest-first.
type Scope string

const (
	ScopeSystem    Scope = "system"
	ScopeTenant    Scope = "tenant"
	ScopeCampaign  Scope = "campaign"
	ScopeProcessor Scope = "processor"
)

// Credential is a single encrypted key/value row. EncryptedValue is opaque
// ciphertext on disk; decryption happens only at the resolver's use site.
type Credential struct {
	ID             string
	Key            string
	EncryptedValue []byte
	Scope          Scope
	ScopeRef       string
	ExpiresAt      *time.Time
	LastUsedAt     *time.Time
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsUsable reports whether the credential may be returned by resolve(): not
// soft-deleted and not expired.
func (c *Credential) IsUsable(now time.Time) bool {
	if c.DeletedAt != nil {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return true
}
