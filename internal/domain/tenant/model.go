// Package tenant holds the central-database entities: Tenant, Domain, and
// User. These rows live in the central database, never inside a tenant_<id>
// database, since they are what resolves tenant identity in the first place.
package tenant

import "time"

// Status is the lifecycle state of a Tenant.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Tier names a subscription plan.
type Tier string

const (
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// Role names a User's membership role within a Tenant.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Tenant is the central identity/billing row; DatabaseName is the physical
// tenant_<id> database this tenant's data lives in, materialized once at
// creation and cached on the catalog row.
type Tenant struct {
	ID                string
	Slug              string
	Email             string
	Status            Status
	Tier              Tier
	Settings          map[string]any
	DatabaseName      string
	CreditBalance     float64
	TrialEndsAt       *time.Time
	DeletedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsActive reports whether the tenant may accept new work.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive && t.DeletedAt == nil
}

// Locale returns the tenant's configured locale, defaulting to "en".
func (t *Tenant) Locale() string {
	if t.Settings == nil {
		return "en"
	}
	if v, ok := t.Settings["locale"].(string); ok && v != "" {
		return v
	}
	return "en"
}

// Domain maps an inbound request host to a tenant, the entry point for
// resolving tenant identity out-of-band of the engine itself.
type Domain struct {
	Host     string
	TenantID string
}

// User is a central-database identity that may hold memberships across
// multiple tenants.
type User struct {
	ID    string
	Email string
}

// Membership binds a User to a Tenant with a role.
type Membership struct {
	UserID   string
	TenantID string
	Role     Role
}
