// Package domain defines subscription levels and their AI usage limits.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Level is a subscription tier.
type Level string

const (
	LevelBase       Level = "base"
	LevelPro        Level = "pro"
	LevelPremium    Level = "premium"
	LevelBusiness   Level = "business"
	LevelEnterprise Level = "enterprise"
)

// Valid reports whether l is a known tier.
func (l Level) Valid() bool {
	switch l {
	case LevelBase, LevelPro, LevelPremium, LevelBusiness, LevelEnterprise:
		return true
	}
	return false
}

// Limits holds per-month AI budget and run caps for a tier.
type Limits struct {
	AICostBudget      float64 `json:"ai_cost_budget"`
	MaxAIRunsPerMonth int64   `json:"max_ai_runs_per_month"`
	Unlimited         bool    `json:"unlimited"`
}

var tierLimits = map[Level]Limits{
	LevelBase:       {AICostBudget: 1.00, MaxAIRunsPerMonth: 20},
	LevelPro:        {AICostBudget: 5.00, MaxAIRunsPerMonth: 100},
	LevelPremium:    {AICostBudget: 15.00, MaxAIRunsPerMonth: 300},
	LevelBusiness:   {AICostBudget: 50.00, MaxAIRunsPerMonth: 1000},
	LevelEnterprise: {Unlimited: true},
}

// LimitsFor returns the static budget table entry for a tier. Unknown
// levels fall back to base limits.
func LimitsFor(level Level) Limits {
	if limits, ok := tierLimits[level]; ok {
		return limits
	}
	return tierLimits[LevelBase]
}

// Subscription is the persisted tier assignment for a user.
type Subscription struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    string       `json:"user_id" gorm:"type:text;not null;uniqueIndex"`
	Level     string       `json:"level" gorm:"type:text;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
