package service

import (
	"context"
	"encoding/base64"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/heylinko/linko/internal/clock"
	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	obsmetrics "github.com/heylinko/linko/internal/observability/metrics"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    costdomain.Repository
	SubSvc  subscriptiondomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    costdomain.Repository
	subSvc  subscriptiondomain.Service
	metrics *obsmetrics.Metrics
}

func New(p Params) costdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("costtracking.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		subSvc:  p.SubSvc,
		metrics: p.Metrics,
	}
}

func (s *Service) GetMonthlyUsage(ctx context.Context, userID string) (costdomain.Snapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return costdomain.Snapshot{}, costdomain.ErrInvalidUser
	}

	level, err := s.subSvc.GetLevel(ctx, userID)
	if err != nil {
		return costdomain.Snapshot{}, err
	}
	limits := subscriptiondomain.LimitsFor(level)

	period := costdomain.PeriodOf(s.clock.Now())
	ledger, err := s.repo.FindLedger(ctx, s.db, userID, period)
	if err != nil {
		return costdomain.Snapshot{}, err
	}
	if ledger == nil {
		ledger = &costdomain.Ledger{UserID: userID, Period: period}
	}

	snapshot := costdomain.Snapshot{
		Period:           period,
		Level:            level,
		TotalCost:        ledger.TotalCost,
		TotalRuns:        ledger.TotalRuns,
		Unlimited:        limits.Unlimited,
		FeatureBreakdown: decodeBreakdown(ledger.FeatureBreakdown),
		ModelBreakdown:   decodeBreakdown(ledger.ModelBreakdown),
	}
	if limits.Unlimited {
		return snapshot, nil
	}

	snapshot.RemainingBudget = math.Max(0, limits.AICostBudget-ledger.TotalCost)
	snapshot.RemainingRuns = maxInt64(0, limits.MaxAIRunsPerMonth-ledger.TotalRuns)
	snapshot.PercentageUsed = percentageUsed(ledger, limits)
	return snapshot, nil
}

func (s *Service) CanAffordOperation(ctx context.Context, userID string, estimatedCost float64, requiredRuns int64) (costdomain.Affordability, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return costdomain.Affordability{}, costdomain.ErrInvalidUser
	}
	if math.IsNaN(estimatedCost) || math.IsInf(estimatedCost, 0) || estimatedCost < 0 {
		return costdomain.Affordability{}, costdomain.ErrInvalidCost
	}
	if requiredRuns < 1 {
		requiredRuns = 1
	}

	snapshot, err := s.GetMonthlyUsage(ctx, userID)
	if err != nil {
		return costdomain.Affordability{}, err
	}

	if snapshot.Unlimited {
		return costdomain.Affordability{
			CanAfford:       true,
			Reason:          costdomain.ReasonEnterpriseUnlimited,
			RemainingBudget: math.MaxFloat64,
			RemainingRuns:   math.MaxInt64,
		}, nil
	}

	aff := costdomain.Affordability{
		RemainingBudget: snapshot.RemainingBudget,
		RemainingRuns:   snapshot.RemainingRuns,
	}
	switch {
	case estimatedCost > snapshot.RemainingBudget:
		aff.Reason = costdomain.ReasonBudgetExceeded
	case requiredRuns > snapshot.RemainingRuns:
		aff.Reason = costdomain.ReasonRunsExceeded
	default:
		aff.CanAfford = true
		aff.Reason = costdomain.ReasonWithinBudget
	}
	return aff, nil
}

// RecordUsage applies one billable operation to the monthly ledger inside a
// transaction: the ledger row is locked, incremented together with its
// per-feature and per-model breakdowns, and one immutable operation row is
// appended. Either everything applies or nothing does.
func (s *Service) RecordUsage(ctx context.Context, userID string, actualCost float64, model, feature string, metadata map[string]any) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return costdomain.ErrInvalidUser
	}
	if math.IsNaN(actualCost) || math.IsInf(actualCost, 0) || actualCost < 0 {
		return costdomain.ErrInvalidCost
	}
	feature = strings.TrimSpace(feature)
	if feature == "" {
		return costdomain.ErrInvalidFeature
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return costdomain.ErrInvalidModel
	}

	now := s.clock.Now()
	period := costdomain.PeriodOf(now)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger, err := s.repo.FindLedgerForUpdate(ctx, tx, userID, period)
		if err != nil {
			return err
		}
		if ledger == nil {
			ledger = &costdomain.Ledger{
				ID:               s.genID.Generate(),
				UserID:           userID,
				Period:           period,
				FeatureBreakdown: datatypes.JSONMap{},
				ModelBreakdown:   datatypes.JSONMap{},
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := s.repo.InsertLedger(ctx, tx, ledger); err != nil {
				return err
			}
		}

		ledger.TotalCost += actualCost
		ledger.TotalRuns++
		ledger.FeatureBreakdown = incrementBreakdown(ledger.FeatureBreakdown, feature, actualCost)
		ledger.ModelBreakdown = incrementBreakdown(ledger.ModelBreakdown, model, actualCost)
		ledger.UpdatedAt = now
		if err := s.repo.UpdateLedger(ctx, tx, ledger); err != nil {
			return err
		}

		op := &costdomain.Operation{
			ID:        s.genID.Generate(),
			UserID:    userID,
			Period:    period,
			Feature:   feature,
			Model:     model,
			Cost:      actualCost,
			CreatedAt: now,
		}
		if metadata != nil {
			op.Metadata = datatypes.JSONMap(metadata)
		}
		return s.repo.InsertOperation(ctx, tx, op)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordUsage(feature, actualCost)
	}
	return nil
}

func (s *Service) ListOperations(ctx context.Context, req costdomain.ListOperationsRequest) (costdomain.ListOperationsResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return costdomain.ListOperationsResponse{}, costdomain.ErrInvalidUser
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		return costdomain.ListOperationsResponse{}, costdomain.ErrInvalidPageSize
	}

	var before time.Time
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := decodeCursor(token)
		if err != nil {
			return costdomain.ListOperationsResponse{}, err
		}
		before = decoded
	}

	// One extra row decides has_more.
	ops, err := s.repo.ListOperations(ctx, s.db, userID, before, int(pageSize)+1)
	if err != nil {
		return costdomain.ListOperationsResponse{}, err
	}

	resp := costdomain.ListOperationsResponse{}
	if len(ops) > int(pageSize) {
		ops = ops[:pageSize]
		resp.HasMore = true
		resp.NextPageToken = encodeCursor(ops[len(ops)-1].CreatedAt)
	}
	resp.Operations = ops
	return resp, nil
}

func (s *Service) PruneLedgers(ctx context.Context, keepMonths int) (int64, error) {
	if keepMonths < 1 {
		keepMonths = 1
	}
	cutoff := costdomain.PeriodOf(s.clock.Now().AddDate(0, -keepMonths, 0))
	removed, err := s.repo.DeleteLedgersBefore(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info("pruned usage ledgers",
			zap.String("cutoff_period", cutoff),
			zap.Int64("removed", removed),
		)
	}
	return removed, nil
}

func decodeBreakdown(raw datatypes.JSONMap) map[string]costdomain.BreakdownEntry {
	out := make(map[string]costdomain.BreakdownEntry, len(raw))
	for key, value := range raw {
		entry, ok := value.(map[string]any)
		if !ok {
			continue
		}
		out[key] = costdomain.BreakdownEntry{
			Runs: int64(asFloat(entry["runs"])),
			Cost: asFloat(entry["cost"]),
		}
	}
	return out
}

func incrementBreakdown(raw datatypes.JSONMap, key string, cost float64) datatypes.JSONMap {
	if raw == nil {
		raw = datatypes.JSONMap{}
	}
	entry := costdomain.BreakdownEntry{}
	if existing, ok := raw[key].(map[string]any); ok {
		entry.Runs = int64(asFloat(existing["runs"]))
		entry.Cost = asFloat(existing["cost"])
	}
	entry.Runs++
	entry.Cost += cost
	raw[key] = map[string]any{"runs": entry.Runs, "cost": entry.Cost}
	return raw
}

func asFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func percentageUsed(ledger *costdomain.Ledger, limits subscriptiondomain.Limits) float64 {
	budgetPct, runsPct := 0.0, 0.0
	if limits.AICostBudget > 0 {
		budgetPct = ledger.TotalCost / limits.AICostBudget * 100
	}
	if limits.MaxAIRunsPerMonth > 0 {
		runsPct = float64(ledger.TotalRuns) / float64(limits.MaxAIRunsPerMonth) * 100
	}
	return math.Max(budgetPct, runsPct)
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func encodeCursor(t time.Time) string {
	return base64.RawURLEncoding.EncodeToString([]byte(t.UTC().Format(time.RFC3339Nano)))
}

func decodeCursor(token string) (time.Time, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, costdomain.ErrInvalidPageSize
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, costdomain.ErrInvalidPageSize
	}
	return t, nil
}
