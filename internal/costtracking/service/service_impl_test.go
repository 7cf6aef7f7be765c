package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	internalclock "github.com/heylinko/linko/internal/clock"
	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	"github.com/heylinko/linko/internal/costtracking/repository"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type subscriptionStub struct {
	mu     sync.Mutex
	levels map[string]subscriptiondomain.Level
}

func (s *subscriptionStub) GetLevel(ctx context.Context, userID string) (subscriptiondomain.Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level, ok := s.levels[userID]; ok {
		return level, nil
	}
	return subscriptiondomain.LevelBase, nil
}

func (s *subscriptionStub) SetLevel(ctx context.Context, userID string, level subscriptiondomain.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.levels == nil {
		s.levels = map[string]subscriptiondomain.Level{}
	}
	s.levels[userID] = level
	return nil
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func setupCostService(t *testing.T, subs *subscriptionStub) (costdomain.Service, *gorm.DB, *internalclock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.AutoMigrate(&costdomain.Ledger{}, &costdomain.Operation{}))

	fake := internalclock.NewFakeClock(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  mustNode(t),
		Clock:  fake,
		Repo:   repository.Provide(),
		SubSvc: subs,
	})
	return svc, db, fake
}

func TestRecordUsageAccumulates(t *testing.T) {
	svc, _, _ := setupCostService(t, &subscriptionStub{})
	ctx := context.Background()

	require.NoError(t, svc.RecordUsage(ctx, "u1", 0.10, "gpt-4o-mini", "company_matching", nil))
	require.NoError(t, svc.RecordUsage(ctx, "u1", 0.25, "gpt-4o-mini", "industry_detection", map[string]any{"input_tokens": 1200}))

	snapshot, err := svc.GetMonthlyUsage(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 0.35, snapshot.TotalCost, 1e-9)
	assert.Equal(t, int64(2), snapshot.TotalRuns)
	assert.Equal(t, "2026-03", snapshot.Period)

	company := snapshot.FeatureBreakdown["company_matching"]
	assert.Equal(t, int64(1), company.Runs)
	assert.InDelta(t, 0.10, company.Cost, 1e-9)

	model := snapshot.ModelBreakdown["gpt-4o-mini"]
	assert.Equal(t, int64(2), model.Runs)
	assert.InDelta(t, 0.35, model.Cost, 1e-9)
}

func TestRecordUsageConcurrent(t *testing.T) {
	svc, db, _ := setupCostService(t, &subscriptionStub{})
	ctx := context.Background()

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if err := svc.RecordUsage(ctx, "u1", 0.01, "gpt-4o-mini", "company_matching", nil); err != nil {
					t.Errorf("record usage: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	snapshot, err := svc.GetMonthlyUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), snapshot.TotalRuns)
	assert.InDelta(t, float64(workers*perWorker)*0.01, snapshot.TotalCost, 1e-9)

	var ops int64
	require.NoError(t, db.Model(&costdomain.Operation{}).Count(&ops).Error)
	assert.Equal(t, int64(workers*perWorker), ops)
}

func TestRecordUsageValidation(t *testing.T) {
	svc, _, _ := setupCostService(t, &subscriptionStub{})
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		cost    float64
		model   string
		feature string
		wantErr error
	}{
		{"nan cost", "u1", math.NaN(), "m", "f", costdomain.ErrInvalidCost},
		{"inf cost", "u1", math.Inf(1), "m", "f", costdomain.ErrInvalidCost},
		{"negative cost", "u1", -0.01, "m", "f", costdomain.ErrInvalidCost},
		{"empty user", " ", 0.01, "m", "f", costdomain.ErrInvalidUser},
		{"empty feature", "u1", 0.01, "m", " ", costdomain.ErrInvalidFeature},
		{"empty model", "u1", 0.01, " ", "f", costdomain.ErrInvalidModel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.RecordUsage(ctx, tc.userID, tc.cost, tc.model, tc.feature, nil)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCanAffordConservativeGate(t *testing.T) {
	svc, _, _ := setupCostService(t, &subscriptionStub{})
	ctx := context.Background()

	// Base tier: $1.00 budget, 20 runs.
	require.NoError(t, svc.RecordUsage(ctx, "u1", 0.995, "gpt-4o-mini", "company_matching", nil))

	aff, err := svc.CanAffordOperation(ctx, "u1", 0.010, 1)
	require.NoError(t, err)
	assert.False(t, aff.CanAfford)
	assert.Equal(t, costdomain.ReasonBudgetExceeded, aff.Reason)
	assert.InDelta(t, 0.005, aff.RemainingBudget, 1e-9)

	aff, err = svc.CanAffordOperation(ctx, "u1", 0.004, 1)
	require.NoError(t, err)
	assert.True(t, aff.CanAfford)
	assert.Equal(t, costdomain.ReasonWithinBudget, aff.Reason)
}

func TestCanAffordRunsExceeded(t *testing.T) {
	svc, _, _ := setupCostService(t, &subscriptionStub{})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, svc.RecordUsage(ctx, "u1", 0.001, "gpt-4o-mini", "company_matching", nil))
	}

	aff, err := svc.CanAffordOperation(ctx, "u1", 0.001, 1)
	require.NoError(t, err)
	assert.False(t, aff.CanAfford)
	assert.Equal(t, costdomain.ReasonRunsExceeded, aff.Reason)
	assert.Equal(t, int64(0), aff.RemainingRuns)
}

func TestCanAffordEnterpriseBypass(t *testing.T) {
	subs := &subscriptionStub{levels: map[string]subscriptiondomain.Level{
		"ent": subscriptiondomain.LevelEnterprise,
	}}
	svc, _, _ := setupCostService(t, subs)
	ctx := context.Background()

	require.NoError(t, svc.RecordUsage(ctx, "ent", 500.0, "gpt-4o", "company_matching", nil))

	aff, err := svc.CanAffordOperation(ctx, "ent", 1000.0, 100)
	require.NoError(t, err)
	assert.True(t, aff.CanAfford)
	assert.Equal(t, costdomain.ReasonEnterpriseUnlimited, aff.Reason)
}

func TestCanAffordRejectsInvalidEstimate(t *testing.T) {
	svc, _, _ := setupCostService(t, &subscriptionStub{})
	ctx := context.Background()

	for _, cost := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.5} {
		_, err := svc.CanAffordOperation(ctx, "u1", cost, 1)
		assert.ErrorIs(t, err, costdomain.ErrInvalidCost)
	}
}

func TestCheckWarningsThresholds(t *testing.T) {
	svc, _, _ := setupCostService(t, &subscriptionStub{})
	ctx := context.Background()

	warnings, err := svc.CheckWarnings(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	// 85% of the $1.00 base budget.
	require.NoError(t, svc.RecordUsage(ctx, "u1", 0.85, "gpt-4o-mini", "company_matching", nil))
	warnings, err = svc.CheckWarnings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, costdomain.WarningKindBudget, warnings[0].Kind)
	assert.Equal(t, costdomain.WarningLevelWarning, warnings[0].Level)

	// Push past 95%.
	require.NoError(t, svc.RecordUsage(ctx, "u1", 0.11, "gpt-4o-mini", "company_matching", nil))
	warnings, err = svc.CheckWarnings(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, costdomain.WarningLevelCritical, warnings[0].Level)
}

func TestCheckWarningsUnlimitedSilent(t *testing.T) {
	subs := &subscriptionStub{levels: map[string]subscriptiondomain.Level{
		"ent": subscriptiondomain.LevelEnterprise,
	}}
	svc, _, _ := setupCostService(t, subs)
	ctx := context.Background()

	require.NoError(t, svc.RecordUsage(ctx, "ent", 999.0, "gpt-4o", "company_matching", nil))
	warnings, err := svc.CheckWarnings(ctx, "ent")
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestPeriodRollover(t *testing.T) {
	svc, _, fake := setupCostService(t, &subscriptionStub{})
	ctx := context.Background()

	require.NoError(t, svc.RecordUsage(ctx, "u1", 0.90, "gpt-4o-mini", "company_matching", nil))

	fake.Advance(31 * 24 * time.Hour)

	snapshot, err := svc.GetMonthlyUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2026-04", snapshot.Period)
	assert.Zero(t, snapshot.TotalCost)
	assert.Equal(t, int64(0), snapshot.TotalRuns)
}

func TestListOperationsPagination(t *testing.T) {
	svc, _, fake := setupCostService(t, &subscriptionStub{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.RecordUsage(ctx, "u1", 0.01, "gpt-4o-mini", "company_matching", nil))
		fake.Advance(time.Second)
	}

	resp, err := svc.ListOperations(ctx, costdomain.ListOperationsRequest{UserID: "u1", PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Operations, 2)
	assert.True(t, resp.HasMore)
	require.NotEmpty(t, resp.NextPageToken)

	resp2, err := svc.ListOperations(ctx, costdomain.ListOperationsRequest{
		UserID:    "u1",
		PageSize:  10,
		PageToken: resp.NextPageToken,
	})
	require.NoError(t, err)
	assert.Len(t, resp2.Operations, 3)
	assert.False(t, resp2.HasMore)
}

func TestPruneLedgers(t *testing.T) {
	svc, db, fake := setupCostService(t, &subscriptionStub{})
	ctx := context.Background()

	require.NoError(t, svc.RecordUsage(ctx, "u1", 0.01, "gpt-4o-mini", "company_matching", nil))
	fake.Advance(400 * 24 * time.Hour)
	require.NoError(t, svc.RecordUsage(ctx, "u1", 0.01, "gpt-4o-mini", "company_matching", nil))

	removed, err := svc.PruneLedgers(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var ledgers int64
	require.NoError(t, db.Model(&costdomain.Ledger{}).Count(&ledgers).Error)
	assert.Equal(t, int64(1), ledgers)

	// Operations are retained for audit.
	var ops int64
	require.NoError(t, db.Model(&costdomain.Operation{}).Count(&ops).Error)
	assert.Equal(t, int64(2), ops)
}
