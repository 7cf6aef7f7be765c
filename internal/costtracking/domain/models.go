// Package domain contains persistence models for per-user monthly AI spend.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Ledger accumulates a user's spend and run count for one calendar month.
// It is created lazily on first usage and mutated only through the atomic
// increment transaction in the service; it is never overwritten wholesale.
type Ledger struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	UserID           string            `json:"user_id" gorm:"type:text;not null;uniqueIndex:ux_usage_ledgers_user_period,priority:1"`
	Period           string            `json:"period" gorm:"type:text;not null;uniqueIndex:ux_usage_ledgers_user_period,priority:2"`
	TotalCost        float64           `json:"total_cost" gorm:"not null;default:0"`
	TotalRuns        int64             `json:"total_runs" gorm:"not null;default:0"`
	FeatureBreakdown datatypes.JSONMap `json:"feature_breakdown"`
	ModelBreakdown   datatypes.JSONMap `json:"model_breakdown"`
	CreatedAt        time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Ledger) TableName() string { return "usage_ledgers" }

// Operation is one immutable, append-only record of a billable call.
type Operation struct {
	ID        snowflake.ID      `json:"id" gorm:"primaryKey"`
	UserID    string            `json:"user_id" gorm:"type:text;not null;index"`
	Period    string            `json:"period" gorm:"type:text;not null;index"`
	Feature   string            `json:"feature" gorm:"type:text;not null"`
	Model     string            `json:"model" gorm:"type:text;not null"`
	Cost      float64           `json:"cost" gorm:"not null"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Operation) TableName() string { return "usage_operations" }

// BreakdownEntry is the per-feature / per-model slice of a ledger.
type BreakdownEntry struct {
	Runs int64   `json:"runs"`
	Cost float64 `json:"cost"`
}

// PeriodOf formats t as the ledger period key.
func PeriodOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}
