package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *Job) error
	FindByID(ctx context.Context, db *gorm.DB, jobID string) (*Job, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]Job, error)

	// Update persists job only while the stored row is still
	// non-terminal. It reports whether the write applied, so a worker
	// racing a concurrent finalization can observe it lost.
	Update(ctx context.Context, db *gorm.DB, job *Job) (bool, error)

	// Fail finalizes a non-terminal job by id alone, for error paths
	// where the full document could not be loaded.
	Fail(ctx context.Context, db *gorm.DB, jobID, message string, at time.Time) (bool, error)
}
