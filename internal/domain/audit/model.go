// Package audit holds the append-only AuditLog entity. Enforcement of
// append-only-ness lives at the repository layer (internal/storage), not
// here; this package only models the row.
package audit

import "time"

// Entry is an immutable audit trail row. Updates and deletes are hard
// rejected by the storage layer.
type Entry struct {
	ID            string
	AuditableType string
	AuditableID   string
	Event         string
	OldValues     map[string]any
	NewValues     map[string]any
	UserID        string
	IP            string
	Tags          []string
	CreatedAt     time.Time
}
