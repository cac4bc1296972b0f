// Package job holds the DocumentJob entity: one execution instance of a
// campaign's pipeline for a specific Document.
package job

import (
	"time"

	"github.com/docuflow/enginecore/internal/domain/campaign"
)

type State string

const (
	StatePending   State = "pending"
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// ErrorLogEntry records one failed attempt for operator/audit visibility.
type ErrorLogEntry struct {
	StepID    string    `json:"step_id"`
	Attempt   int       `json:"attempt"`
	Message   string    `json:"message"`
	Retriable bool      `json:"retriable"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DocumentJob is the execution of a pipeline instance. PipelineSnapshot is
// frozen at creation time so later edits to the owning Campaign never mutate
// an in-flight job.
type DocumentJob struct {
	ID               string
	UUID             string
	DocumentID       string
	CampaignID       string
	State            State
	PipelineSnapshot campaign.PipelineConfig
	CurrentStepIndex int
	Attempts         int
	MaxAttempts      int
	ErrorLog         []ErrorLogEntry
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CurrentStep returns the step at CurrentStepIndex, or false if the job has
// advanced past the end of the snapshot (i.e. it is complete).
func (j *DocumentJob) CurrentStep() (campaign.ProcessorStep, bool) {
	steps := j.PipelineSnapshot.Processors
	if j.CurrentStepIndex < 0 || j.CurrentStepIndex >= len(steps) {
		return campaign.ProcessorStep{}, false
	}
	return steps[j.CurrentStepIndex], true
}

// IsTerminal reports whether the job has reached a state from which no
// further orchestrator invocation does anything.
func (j *DocumentJob) IsTerminal() bool {
	switch j.State {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

func (j *DocumentJob) StageCount() int {
	return len(j.PipelineSnapshot.Processors)
}
