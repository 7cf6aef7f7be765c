package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// FindLedgerForUpdate loads the ledger row inside tx with a row lock on
	// dialects that support it. Returns nil when the month has no ledger yet.
	FindLedgerForUpdate(ctx context.Context, tx *gorm.DB, userID, period string) (*Ledger, error)
	FindLedger(ctx context.Context, db *gorm.DB, userID, period string) (*Ledger, error)
	InsertLedger(ctx context.Context, tx *gorm.DB, ledger *Ledger) error
	UpdateLedger(ctx context.Context, tx *gorm.DB, ledger *Ledger) error
	DeleteLedgersBefore(ctx context.Context, db *gorm.DB, period string) (int64, error)

	InsertOperation(ctx context.Context, tx *gorm.DB, op *Operation) error
	ListOperations(ctx context.Context, db *gorm.DB, userID string, before time.Time, limit int) ([]Operation, error)
}
