package service

import (
	"context"
	"fmt"

	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
)

const (
	warningThreshold  = 80.0
	criticalThreshold = 95.0
)

// CheckWarnings derives advisory threshold warnings from the current
// snapshot. It reads only; nothing is written or notified here.
func (s *Service) CheckWarnings(ctx context.Context, userID string) ([]costdomain.Warning, error) {
	snapshot, err := s.GetMonthlyUsage(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snapshot.Unlimited {
		return nil, nil
	}

	limits := subscriptiondomain.LimitsFor(snapshot.Level)

	var warnings []costdomain.Warning
	if limits.AICostBudget > 0 {
		pct := snapshot.TotalCost / limits.AICostBudget * 100
		if w, ok := thresholdWarning(costdomain.WarningKindBudget, pct,
			fmt.Sprintf("AI budget at %.0f%% ($%.2f of $%.2f)", pct, snapshot.TotalCost, limits.AICostBudget)); ok {
			warnings = append(warnings, w)
		}
	}
	if limits.MaxAIRunsPerMonth > 0 {
		pct := float64(snapshot.TotalRuns) / float64(limits.MaxAIRunsPerMonth) * 100
		if w, ok := thresholdWarning(costdomain.WarningKindRuns, pct,
			fmt.Sprintf("AI runs at %.0f%% (%d of %d)", pct, snapshot.TotalRuns, limits.MaxAIRunsPerMonth)); ok {
			warnings = append(warnings, w)
		}
	}
	return warnings, nil
}

func thresholdWarning(kind string, pct float64, message string) (costdomain.Warning, bool) {
	switch {
	case pct >= criticalThreshold:
		return costdomain.Warning{Kind: kind, Level: costdomain.WarningLevelCritical, PercentageUsed: pct, Message: message}, true
	case pct >= warningThreshold:
		return costdomain.Warning{Kind: kind, Level: costdomain.WarningLevelWarning, PercentageUsed: pct, Message: message}, true
	}
	return costdomain.Warning{}, false
}
