package domain

import (
	"context"
	"errors"

	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
)

// StartResponse is what a caller gets back immediately: the job is
// queued and the pipeline runs in the background.
type StartResponse struct {
	JobID                    string `json:"job_id"`
	Status                   Status `json:"status"`
	EstimatedDurationSeconds int    `json:"estimated_duration_seconds"`
}

type Service interface {
	// StartAIGroupingJob creates a queued job and schedules the pipeline.
	// It returns once the job row exists; it never waits for the result.
	StartAIGroupingJob(ctx context.Context, userID string, opts groupingdomain.Options) (StartResponse, error)

	// GetJobStatus returns the job only to its owner.
	GetJobStatus(ctx context.Context, userID, jobID string) (*Job, error)

	ListJobs(ctx context.Context, userID string) ([]Job, error)
}

var (
	ErrInvalidUser  = errors.New("invalid_user")
	ErrJobNotFound  = errors.New("job_not_found")
	ErrJobForbidden = errors.New("job_forbidden")
	ErrJobRejected  = errors.New("job_rejected")
)
