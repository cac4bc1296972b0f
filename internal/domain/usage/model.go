// Package usage holds the append-only UsageEvent ledger: per-event metering
// for upload, storage, processor execution, AI token consumption, and
// connector calls.
package usage

import "time"

type Type string

const (
	TypeUpload            Type = "upload"
	TypeStorage           Type = "storage"
	TypeProcessorExecution Type = "processor_execution"
	TypeAITask            Type = "ai_task"
	TypeConnectorCall     Type = "connector_call"
)

// Event is a single, never-updated, never-deleted usage record.
type Event struct {
	ID          string
	Type        Type
	Units       float64
	CostCredits float64
	CampaignID  string
	DocumentID  string
	JobID       string
	OccurredAt  time.Time
}
