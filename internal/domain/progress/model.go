// Package progress holds the PipelineProgress read-model projection,
// maintained append-style alongside every orchestrator transition so the
// polling APIs never need to recompute state from the job/execution tables.
package progress

import "time"

// Progress is the per-job projection backing GET /documents/{uuid}/progress.
type Progress struct {
	JobID               string
	StageCount          int
	CompletedStages     int
	PercentageComplete  float64
	CurrentStageName    string
	Status              string
	UpdatedAt           time.Time
}

// Recompute derives PercentageComplete from CompletedStages/StageCount.
func (p *Progress) Recompute() {
	if p.StageCount <= 0 {
		p.PercentageComplete = 0
		return
	}
	p.PercentageComplete = float64(p.CompletedStages) / float64(p.StageCount) * 100
}
