// Package postgres implements internal/storage's interfaces against a
// single tenant's `tenant_<id>` database, grounded on the teacher's
// internal/app/storage/postgres.Store (raw database/sql + lib/pq, JSON
// columns marshaled by hand, google/uuid for generated ids).
//
// Each storage interface is implemented by its own named type (campaignStore,
// documentStore, ...) rather than by one god-type, since several interfaces
// declare same-named methods (Create, Get, ...) with different signatures —
// exactly the reason the teacher's memory store splits the same way.
package postgres

import (
	"database/sql"

	"github.com/docuflow/enginecore/internal/storage"
)

// Store owns the tenant database handle; Stores() hands out the typed views
// that each implement exactly one storage interface.
type Store struct {
	db *sql.DB
}

// New creates a Store using the provided tenant database handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

type (
	campaignStore   Store
	documentStore   Store
	jobStore        Store
	processorStore  Store
	executionStore  Store
	credentialStore Store
	usageStore      Store
	auditStore      Store
	progressStore   Store
	queueStore      Store
)

var (
	_ storage.CampaignStore   = (*campaignStore)(nil)
	_ storage.DocumentStore   = (*documentStore)(nil)
	_ storage.JobStore        = (*jobStore)(nil)
	_ storage.ProcessorStore  = (*processorStore)(nil)
	_ storage.ExecutionStore  = (*executionStore)(nil)
	_ storage.CredentialStore = (*credentialStore)(nil)
	_ storage.UsageStore      = (*usageStore)(nil)
	_ storage.AuditStore      = (*auditStore)(nil)
	_ storage.ProgressStore   = (*progressStore)(nil)
	_ storage.QueueStore      = (*queueStore)(nil)
)

// Stores builds a storage.Stores bundle, all views backed by this handle.
func (s *Store) Stores() storage.Stores {
	return storage.Stores{
		Campaigns:   (*campaignStore)(s),
		Documents:   (*documentStore)(s),
		Jobs:        (*jobStore)(s),
		Processors:  (*processorStore)(s),
		Executions:  (*executionStore)(s),
		Credentials: (*credentialStore)(s),
		Usage:       (*usageStore)(s),
		Audit:       (*auditStore)(s),
		Progress:    (*progressStore)(s),
		Queue:       (*queueStore)(s),
	}
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
