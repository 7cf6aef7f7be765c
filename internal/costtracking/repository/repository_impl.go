package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() costdomain.Repository {
	return &repo{}
}

func (r *repo) FindLedgerForUpdate(ctx context.Context, tx *gorm.DB, userID, period string) (*costdomain.Ledger, error) {
	stmt := tx.WithContext(ctx)
	// sqlite serializes writers on its own; FOR UPDATE is not valid there.
	if !strings.EqualFold(tx.Dialector.Name(), "sqlite") {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var ledger costdomain.Ledger
	err := stmt.
		Where("user_id = ? AND period = ?", userID, period).
		First(&ledger).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ledger, nil
}

func (r *repo) FindLedger(ctx context.Context, db *gorm.DB, userID, period string) (*costdomain.Ledger, error) {
	var ledger costdomain.Ledger
	err := db.WithContext(ctx).
		Where("user_id = ? AND period = ?", userID, period).
		First(&ledger).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ledger, nil
}

func (r *repo) InsertLedger(ctx context.Context, tx *gorm.DB, ledger *costdomain.Ledger) error {
	return tx.WithContext(ctx).Create(ledger).Error
}

func (r *repo) UpdateLedger(ctx context.Context, tx *gorm.DB, ledger *costdomain.Ledger) error {
	return tx.WithContext(ctx).
		Model(&costdomain.Ledger{}).
		Where("user_id = ? AND period = ?", ledger.UserID, ledger.Period).
		Updates(map[string]any{
			"total_cost":        ledger.TotalCost,
			"total_runs":        ledger.TotalRuns,
			"feature_breakdown": ledger.FeatureBreakdown,
			"model_breakdown":   ledger.ModelBreakdown,
			"updated_at":        ledger.UpdatedAt,
		}).Error
}

func (r *repo) DeleteLedgersBefore(ctx context.Context, db *gorm.DB, period string) (int64, error) {
	result := db.WithContext(ctx).
		Where("period < ?", period).
		Delete(&costdomain.Ledger{})
	return result.RowsAffected, result.Error
}

func (r *repo) InsertOperation(ctx context.Context, tx *gorm.DB, op *costdomain.Operation) error {
	return tx.WithContext(ctx).Create(op).Error
}

func (r *repo) ListOperations(ctx context.Context, db *gorm.DB, userID string, before time.Time, limit int) ([]costdomain.Operation, error) {
	stmt := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit)
	if !before.IsZero() {
		stmt = stmt.Where("created_at < ?", before)
	}

	var ops []costdomain.Operation
	if err := stmt.Find(&ops).Error; err != nil {
		return nil, err
	}
	return ops, nil
}
