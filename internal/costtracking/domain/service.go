package domain

import (
	"context"
	"errors"

	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
)

// Snapshot is the derived view of a user's current-month usage against
// their tier limits.
type Snapshot struct {
	Period           string                    `json:"period"`
	Level            subscriptiondomain.Level  `json:"level"`
	TotalCost        float64                   `json:"total_cost"`
	TotalRuns        int64                     `json:"total_runs"`
	RemainingBudget  float64                   `json:"remaining_budget"`
	RemainingRuns    int64                     `json:"remaining_runs"`
	PercentageUsed   float64                   `json:"percentage_used"`
	Unlimited        bool                      `json:"unlimited"`
	FeatureBreakdown map[string]BreakdownEntry `json:"feature_breakdown"`
	ModelBreakdown   map[string]BreakdownEntry `json:"model_breakdown"`
}

// Affordability reason codes. Budget violations are business outcomes,
// not errors.
const (
	ReasonWithinBudget        = "within_budget"
	ReasonBudgetExceeded      = "budget_exceeded"
	ReasonRunsExceeded        = "runs_exceeded"
	ReasonEnterpriseUnlimited = "enterprise_unlimited"
)

type Affordability struct {
	CanAfford       bool    `json:"can_afford"`
	Reason          string  `json:"reason"`
	RemainingBudget float64 `json:"remaining_budget"`
	RemainingRuns   int64   `json:"remaining_runs"`
}

// Warning levels for the advisory usage thresholds.
const (
	WarningLevelWarning  = "warning"  // >= 80%
	WarningLevelCritical = "critical" // >= 95%

	WarningKindBudget = "budget"
	WarningKindRuns   = "runs"
)

type Warning struct {
	Kind           string  `json:"kind"`
	Level          string  `json:"level"`
	PercentageUsed float64 `json:"percentage_used"`
	Message        string  `json:"message"`
}

type ListOperationsRequest struct {
	UserID    string `json:"user_id"`
	PageToken string `json:"page_token"`
	PageSize  int32  `json:"page_size"`
}

type ListOperationsResponse struct {
	Operations    []Operation `json:"operations"`
	NextPageToken string      `json:"next_page_token,omitempty"`
	HasMore       bool        `json:"has_more"`
}

type Service interface {
	GetMonthlyUsage(ctx context.Context, userID string) (Snapshot, error)

	// CanAffordOperation fails closed: the projection of estimatedCost and
	// requiredRuns against tier limits decides before any model call.
	CanAffordOperation(ctx context.Context, userID string, estimatedCost float64, requiredRuns int64) (Affordability, error)

	// RecordUsage atomically increments the monthly ledger and appends one
	// immutable operation. actualCost must be a finite, non-negative number.
	RecordUsage(ctx context.Context, userID string, actualCost float64, model, feature string, metadata map[string]any) error

	CheckWarnings(ctx context.Context, userID string) ([]Warning, error)
	ListOperations(ctx context.Context, req ListOperationsRequest) (ListOperationsResponse, error)

	// PruneLedgers removes ledgers older than keepMonths. Operations stay.
	PruneLedgers(ctx context.Context, keepMonths int) (int64, error)
}

var (
	ErrInvalidUser     = errors.New("invalid_user")
	ErrInvalidCost     = errors.New("invalid_cost")
	ErrInvalidFeature  = errors.New("invalid_feature")
	ErrInvalidModel    = errors.New("invalid_model")
	ErrInvalidRuns     = errors.New("invalid_runs")
	ErrInvalidPageSize = errors.New("invalid_page_size")
)
