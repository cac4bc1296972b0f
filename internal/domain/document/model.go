// Package document holds the Document entity: an ingested artifact subject
// to processing under a Campaign's pipeline.
package document

import "time"

type State string

const (
	StatePending    State = "pending"
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// HistoryEntry records one processor's contribution once its step commits.
type HistoryEntry struct {
	StepID      string         `json:"step_id"`
	ProcessorID string         `json:"processor_id"`
	Output      map[string]any `json:"output"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Document is a tenant-scoped ingested artifact.
type Document struct {
	ID               string
	UUID             string
	CampaignID       string
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
	SHA256Hash       string
	StoragePath      string
	StorageDisk      string
	State            State
	Metadata         map[string]any
	ProcessingHistory []HistoryEntry
	Retries          int
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AppendHistory records a completed step's output against the document and
// merges metadata_delta into Metadata, per SPEC_FULL §4.7 step 9.
func (d *Document) AppendHistory(entry HistoryEntry, metadataDelta map[string]any) {
	d.ProcessingHistory = append(d.ProcessingHistory, entry)
	if len(metadataDelta) == 0 {
		return
	}
	if d.Metadata == nil {
		d.Metadata = make(map[string]any, len(metadataDelta))
	}
	for k, v := range metadataDelta {
		d.Metadata[k] = v
	}
}
