// Package domain defines the background grouping job and its lifecycle.
package domain

import (
	"time"

	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
)

// Status is the job lifecycle state. Completed and failed are terminal;
// a terminal job is never transitioned again.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Pipeline stages, in execution order. Stage names double as keys in
// StageErrors. AI analysis reports its failures under "ai_enhancement"
// so clients can distinguish degraded results from pipeline breakage.
const (
	StageFetchingContacts = "fetching_contacts"
	StageAIAnalysis       = "ai_analysis"
	StageDeduplicating    = "deduplicating_groups"
	StageSavingResults    = "saving_results"

	StageErrorKeyAI = "ai_enhancement"
)

// StageStatus is the lifecycle of one pipeline stage. Statuses are
// monotonic: pending moves to in_progress moves to completed, and a
// completed stage never reverts.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
)

// Stage is one entry of the fixed per-job stage breakdown that pollers
// render.
type Stage struct {
	Name     string      `json:"name"`
	Status   StageStatus `json:"status"`
	Progress int         `json:"progress"`
}

type Stages []Stage

// NewStages returns the four pipeline stages in execution order, all
// pending.
func NewStages() Stages {
	return Stages{
		{Name: StageFetchingContacts, Status: StagePending},
		{Name: StageAIAnalysis, Status: StagePending},
		{Name: StageDeduplicating, Status: StagePending},
		{Name: StageSavingResults, Status: StagePending},
	}
}

// Begin moves the named stage from pending to in_progress. A stage that
// already completed is left alone.
func (s Stages) Begin(name string) {
	for i := range s {
		if s[i].Name == name && s[i].Status == StagePending {
			s[i].Status = StageInProgress
		}
	}
}

// Complete finishes the named stage, closing any earlier stage still
// open so the sequence never shows a completed stage after an
// unfinished one.
func (s Stages) Complete(name string) {
	for i := range s {
		if s[i].Status != StageCompleted {
			s[i].Status = StageCompleted
			s[i].Progress = 100
		}
		if s[i].Name == name {
			return
		}
	}
}

// StageError records a non-fatal failure inside one pipeline stage.
type StageError struct {
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

type StageErrorMap map[string]StageError

// Result is the payload of a completed job.
type Result struct {
	Groups         []contactdomain.Group `json:"groups"`
	TotalGenerated int                   `json:"total_generated"`
	TotalUnique    int                   `json:"total_unique"`
	TotalSaved     int                   `json:"total_saved"`
	Message        string                `json:"message,omitempty"`
}

// Job is one background grouping run. Progress is a 0-100 percentage
// advanced at stage boundaries.
type Job struct {
	ID           string                 `json:"id" gorm:"primaryKey;type:text"`
	UserID       string                 `json:"user_id" gorm:"type:text;not null;index"`
	Status       Status                 `json:"status" gorm:"type:text;not null;index"`
	Progress     int                    `json:"progress" gorm:"not null;default:0"`
	CurrentStage string                 `json:"current_stage" gorm:"type:text"`
	Stages       Stages                 `json:"stages" gorm:"serializer:json"`
	Options      groupingdomain.Options `json:"options" gorm:"serializer:json"`
	Result       *Result                `json:"result,omitempty" gorm:"serializer:json"`
	StageErrors  StageErrorMap          `json:"stage_errors,omitempty" gorm:"serializer:json"`
	Error        string                 `json:"error,omitempty" gorm:"type:text"`

	EstimatedDurationSeconds int `json:"estimated_duration_seconds" gorm:"not null;default:0"`

	CreatedAt   time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName sets the database table name.
func (Job) TableName() string { return "grouping_jobs" }
