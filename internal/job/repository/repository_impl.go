package repository

import (
	"context"
	"errors"
	"time"

	jobdomain "github.com/heylinko/linko/internal/job/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() jobdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *jobdomain.Job) error {
	return db.WithContext(ctx).Create(job).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, jobID string) (*jobdomain.Job, error) {
	var job jobdomain.Job
	err := db.WithContext(ctx).
		Where("id = ?", jobID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, jobdomain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]jobdomain.Job, error) {
	var jobs []jobdomain.Job
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Update writes the full job row, guarded so a row already in a
// terminal state is left untouched.
func (r *repo) Update(ctx context.Context, db *gorm.DB, job *jobdomain.Job) (bool, error) {
	res := db.WithContext(ctx).
		Model(&jobdomain.Job{}).
		Where("id = ? AND status IN ?", job.ID, []jobdomain.Status{jobdomain.StatusQueued, jobdomain.StatusProcessing}).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(job)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Fail is the targeted variant of Update for paths that only know the
// job id. The same terminality guard applies.
func (r *repo) Fail(ctx context.Context, db *gorm.DB, jobID, message string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&jobdomain.Job{}).
		Where("id = ? AND status IN ?", jobID, []jobdomain.Status{jobdomain.StatusQueued, jobdomain.StatusProcessing}).
		Updates(map[string]any{
			"status":       jobdomain.StatusFailed,
			"error":        message,
			"completed_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
