// Package campaign holds the Campaign entity: a tenant-authored pipeline
// template plus the constraints documents uploaded under it must satisfy.
package campaign

import (
	"strconv"
	"time"
)

type Type string

const (
	TypeTemplate Type = "template"
	TypeCustom   Type = "custom"
	TypeMeta     Type = "meta"
)

type State string

const (
	StateDraft    State = "draft"
	StateActive   State = "active"
	StatePaused   State = "paused"
	StateArchived State = "archived"
)

// ProcessorStep is one entry of pipeline_config.processors: a step id unique
// within the pipeline, the processor type slug it resolves to, and its
// config payload.
type ProcessorStep struct {
	ID     string         `json:"id" yaml:"id"`
	Type   string         `json:"type" yaml:"type"`
	Config map[string]any `json:"config" yaml:"config"`
}

// PipelineConfig is the ordered processor list a Campaign defines.
type PipelineConfig struct {
	Processors []ProcessorStep `json:"processors" yaml:"processors"`
}

// ChecklistItem is an optional reviewer checklist entry.
type ChecklistItem struct {
	Label    string `json:"label" yaml:"label"`
	Required bool   `json:"required" yaml:"required"`
}

// Campaign is a tenant-scoped pipeline template.
type Campaign struct {
	ID                string
	Slug              string
	Name              string
	Description       string
	Type              Type
	State             State
	PipelineConfig    PipelineConfig
	Settings          map[string]any
	AllowedMimeTypes  []string
	MaxFileSizeBytes  int64
	MaxConcurrentJobs int
	RetentionDays     int
	ChecklistTemplate []ChecklistItem
	WebhookURL        string
	PublishedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Locale returns the campaign's configured locale, or empty if unset.
func (c *Campaign) Locale() string {
	if c.Settings == nil {
		return ""
	}
	v, _ := c.Settings["locale"].(string)
	return v
}

// DefaultAllowedMimeTypes is the platform-wide fallback when a Campaign
// doesn't declare its own.
var DefaultAllowedMimeTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"text/csv",
}

const (
	DefaultMaxFileSizeBytes  int64 = 10_485_760
	DefaultMaxConcurrentJobs       = 10
	DefaultRetentionDays           = 90
)

// Validate enforces the Campaign invariant: pipeline_config.processors is a
// non-empty ordered list with unique step ids, each type resolvable by the
// caller-supplied resolver function.
func (c *Campaign) Validate(resolvesType func(slug string) bool) []string {
	var problems []string
	if len(c.PipelineConfig.Processors) == 0 {
		problems = append(problems, "pipeline_config.processors: must be non-empty")
		return problems
	}
	seen := make(map[string]bool, len(c.PipelineConfig.Processors))
	for i, step := range c.PipelineConfig.Processors {
		if step.ID == "" {
			problems = append(problems, stepField(i, "id")+": required")
		} else if seen[step.ID] {
			problems = append(problems, stepField(i, "id")+": duplicate")
		}
		seen[step.ID] = true
		if step.Type == "" {
			problems = append(problems, stepField(i, "type")+": required")
		} else if resolvesType != nil && !resolvesType(step.Type) {
			problems = append(problems, stepField(i, "type")+": unknown processor type")
		}
	}
	return problems
}

func stepField(i int, name string) string {
	return "processors[" + strconv.Itoa(i) + "]." + name
}
