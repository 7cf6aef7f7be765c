package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
	"github.com/heylinko/linko/internal/llm"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// llmStub returns scripted completions keyed by a substring of the
// prompt, and counts every call.
type llmStub struct {
	mu        sync.Mutex
	calls     int
	responses map[string]string
	err       error
}

func (s *llmStub) Generate(ctx context.Context, modelID, prompt string) (*llm.Completion, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for key, text := range s.responses {
		if key == "" || strings.Contains(prompt, key) {
			return &llm.Completion{Text: text, InputTokens: 1000, OutputTokens: 200}, nil
		}
	}
	return &llm.Completion{Text: `{"groups":[]}`, InputTokens: 1000, OutputTokens: 10}, nil
}

func (s *llmStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// costStub implements the cost service with a scripted gate.
type costStub struct {
	mu       sync.Mutex
	afford   bool
	reason   string
	recorded []float64
	features []string
}

func (s *costStub) GetMonthlyUsage(ctx context.Context, userID string) (costdomain.Snapshot, error) {
	return costdomain.Snapshot{}, nil
}

func (s *costStub) CanAffordOperation(ctx context.Context, userID string, estimatedCost float64, requiredRuns int64) (costdomain.Affordability, error) {
	reason := s.reason
	if reason == "" {
		reason = costdomain.ReasonWithinBudget
	}
	return costdomain.Affordability{CanAfford: s.afford, Reason: reason}, nil
}

func (s *costStub) RecordUsage(ctx context.Context, userID string, actualCost float64, model, feature string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, actualCost)
	s.features = append(s.features, feature)
	return nil
}

func (s *costStub) CheckWarnings(ctx context.Context, userID string) ([]costdomain.Warning, error) {
	return nil, nil
}

func (s *costStub) ListOperations(ctx context.Context, req costdomain.ListOperationsRequest) (costdomain.ListOperationsResponse, error) {
	return costdomain.ListOperationsResponse{}, nil
}

func (s *costStub) PruneLedgers(ctx context.Context, keepMonths int) (int64, error) {
	return 0, nil
}

func newTestEngine(t *testing.T, client llm.Client, costs costdomain.Service) *Engine {
	t.Helper()
	return New(Params{
		Log:     zap.NewNop(),
		LLM:     client,
		CostSvc: costs,
	}).(*Engine)
}

func testContacts(t *testing.T, specs ...[2]string) []contactdomain.Contact {
	t.Helper()
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	contacts := make([]contactdomain.Contact, 0, len(specs))
	for i, spec := range specs {
		contacts = append(contacts, contactdomain.Contact{
			ID:      node.Generate(),
			UserID:  "u1",
			Name:    fmt.Sprintf("Person %d", i),
			Company: spec[0],
			Title:   spec[1],
		})
	}
	return contacts
}

func TestEstimateOperationCostPerTier(t *testing.T) {
	eng := newTestEngine(t, &llmStub{}, &costStub{afford: true})
	opts := groupingdomain.DefaultOptions()

	tests := []struct {
		level    subscriptiondomain.Level
		features int
		cost     float64
	}{
		{subscriptiondomain.LevelBase, 1, 0.010},
		{subscriptiondomain.LevelPro, 2, 0.025},
		{subscriptiondomain.LevelPremium, 3, 0.045},
		{subscriptiondomain.LevelEnterprise, 3, 0.045},
	}
	for _, tc := range tests {
		t.Run(string(tc.level), func(t *testing.T) {
			estimate := eng.EstimateOperationCost(tc.level, opts)
			assert.Equal(t, tc.features, estimate.FeaturesCount)
			assert.InDelta(t, tc.cost, estimate.EstimatedCost, 1e-9)
			assert.False(t, estimate.UseDeepAnalysis)
		})
	}
}

func TestEstimateExcludesTierLockedFeatures(t *testing.T) {
	eng := newTestEngine(t, &llmStub{}, &costStub{afford: true})

	// Base tier asking for relationships still only pays for company
	// matching.
	estimate := eng.EstimateOperationCost(subscriptiondomain.LevelBase, groupingdomain.Options{
		GroupByCompany:       true,
		GroupByRelationships: true,
	})
	assert.Equal(t, []groupingdomain.Feature{groupingdomain.FeatureCompanyMatching}, estimate.Features)
	assert.InDelta(t, 0.010, estimate.EstimatedCost, 1e-9)
}

func TestEstimateDeepMultiplierEnterpriseOnly(t *testing.T) {
	eng := newTestEngine(t, &llmStub{}, &costStub{afford: true})
	opts := groupingdomain.DefaultOptions()
	opts.UseDeepAnalysis = true

	deep := eng.EstimateOperationCost(subscriptiondomain.LevelEnterprise, opts)
	assert.True(t, deep.UseDeepAnalysis)
	assert.InDelta(t, 0.045*4.0, deep.EstimatedCost, 1e-9)
	assert.Equal(t, "gpt-4o", deep.Model.ID)

	// Premium asking for deep analysis gets the standard model and
	// standard prices.
	std := eng.EstimateOperationCost(subscriptiondomain.LevelPremium, opts)
	assert.False(t, std.UseDeepAnalysis)
	assert.InDelta(t, 0.045, std.EstimatedCost, 1e-9)
	assert.Equal(t, "gpt-4o-mini", std.Model.ID)
}

func TestSelectModelDeterministic(t *testing.T) {
	eng := newTestEngine(t, &llmStub{}, &costStub{afford: true})

	assert.Equal(t, "gpt-4o", eng.SelectModel(subscriptiondomain.LevelEnterprise, true).ID)
	assert.Equal(t, "gpt-4o-mini", eng.SelectModel(subscriptiondomain.LevelEnterprise, false).ID)
	assert.Equal(t, "gpt-4o-mini", eng.SelectModel(subscriptiondomain.LevelBusiness, true).ID)
	assert.Equal(t, "gpt-4o-mini", eng.SelectModel(subscriptiondomain.LevelBase, false).ID)
}

func TestSmartCompanyMatchingClustersVariants(t *testing.T) {
	client := &llmStub{responses: map[string]string{
		"Company names": `Here you go:
{"groups":[
  {"canonical_name":"Acme","variants":["Acme Corp","Acme Inc"],"confidence":0.92},
  {"canonical_name":"Globex","variants":["Globex"],"confidence":0.99}
]}`,
	}}
	eng := newTestEngine(t, client, &costStub{afford: true})

	contacts := testContacts(t,
		[2]string{"Acme Corp", "CEO"},
		[2]string{"Acme Inc", "CTO"},
		[2]string{"Globex", "VP"},
	)

	result, err := eng.SmartCompanyMatching(context.Background(), contacts, DefaultConfig().StandardModel)
	require.NoError(t, err)
	assert.Empty(t, result.SkipReason)

	// The singleton Globex cluster is discarded.
	require.Len(t, result.Groups, 1)
	group := result.Groups[0]
	assert.Equal(t, "Acme", group.Name)
	assert.Equal(t, contactdomain.GroupTypeCompany, group.Type)
	assert.Len(t, group.ContactIDs, 2)
	assert.Greater(t, result.ActualCost, 0.0)
}

func TestSmartCompanyMatchingSkipsSmallInputs(t *testing.T) {
	client := &llmStub{}
	eng := newTestEngine(t, client, &costStub{afford: true})

	contacts := testContacts(t, [2]string{"Acme", "CEO"}, [2]string{"Acme", "CTO"})
	result, err := eng.SmartCompanyMatching(context.Background(), contacts, DefaultConfig().StandardModel)
	require.NoError(t, err)
	assert.Equal(t, groupingdomain.SkipTooFewCompanies, result.SkipReason)
	assert.Zero(t, client.Calls())
	assert.Zero(t, result.ActualCost)
}

func TestIndustryGroupingValidatesContactIDs(t *testing.T) {
	specs := make([][2]string, 0, 12)
	for i := 0; i < 12; i++ {
		specs = append(specs, [2]string{fmt.Sprintf("Company %d", i), "Engineer"})
	}
	contacts := testContacts(t, specs...)

	response := fmt.Sprintf(`{"groups":[
  {"industry":"Technology","contact_ids":["%s","%s","not-a-real-id"],"confidence":0.8},
  {"industry":"Finance","contact_ids":["%s"],"confidence":0.7}
]}`, contacts[0].ID, contacts[1].ID, contacts[2].ID)

	client := &llmStub{responses: map[string]string{"Contacts": response}}
	eng := newTestEngine(t, client, &costStub{afford: true})

	result, err := eng.IndustryGrouping(context.Background(), contacts, DefaultConfig().StandardModel)
	require.NoError(t, err)

	// The hallucinated id is dropped; the one-member Finance cluster is
	// discarded entirely.
	require.Len(t, result.Groups, 1)
	assert.Equal(t, "Technology", result.Groups[0].Name)
	assert.Len(t, result.Groups[0].ContactIDs, 2)
}

func TestIndustryGroupingSkipsSmallBooks(t *testing.T) {
	client := &llmStub{}
	eng := newTestEngine(t, client, &costStub{afford: true})

	contacts := testContacts(t, [2]string{"A", "x"}, [2]string{"B", "y"}, [2]string{"C", "z"})
	result, err := eng.IndustryGrouping(context.Background(), contacts, DefaultConfig().StandardModel)
	require.NoError(t, err)
	assert.Equal(t, groupingdomain.SkipTooFewContactsIndustry, result.SkipReason)
	assert.Zero(t, client.Calls())
}

func TestAnalyzeGateBlocksModelCalls(t *testing.T) {
	client := &llmStub{}
	costs := &costStub{afford: false, reason: costdomain.ReasonBudgetExceeded}
	eng := newTestEngine(t, client, costs)

	contacts := testContacts(t,
		[2]string{"Acme", "CEO"}, [2]string{"Globex", "CTO"},
		[2]string{"Initech", "VP"}, [2]string{"Hooli", "PM"},
		[2]string{"Umbrella", "Dev"},
	)

	outcome := eng.Analyze(context.Background(), "u1", contacts, subscriptiondomain.LevelPremium, groupingdomain.DefaultOptions())

	assert.Zero(t, client.Calls())
	assert.Empty(t, outcome.Groups)
	assert.Empty(t, outcome.FeaturesRun)
	assert.Len(t, outcome.FeatureErrors, 3)
	for _, reason := range outcome.FeatureErrors {
		assert.Equal(t, costdomain.ReasonBudgetExceeded, reason)
	}
	assert.Empty(t, costs.recorded)
}

func TestAnalyzePartialFailureIsolated(t *testing.T) {
	// Company matching succeeds, the other analyses blow up.
	client := &scriptedClient{
		byPrompt: map[string]scripted{
			"Company names": {text: `{"groups":[{"canonical_name":"Acme","variants":["Acme","Acme Corp"],"confidence":0.9}]}`},
			"":              {err: errors.New("model unavailable")},
		},
	}
	costs := &costStub{afford: true}
	eng := newTestEngine(t, client, costs)

	specs := make([][2]string, 0, 12)
	specs = append(specs, [2]string{"Acme", "CEO"}, [2]string{"Acme Corp", "CTO"})
	for i := 0; i < 10; i++ {
		specs = append(specs, [2]string{fmt.Sprintf("Other %d", i), "Engineer"})
	}
	contacts := testContacts(t, specs...)

	outcome := eng.Analyze(context.Background(), "u1", contacts, subscriptiondomain.LevelPremium, groupingdomain.DefaultOptions())

	assert.Len(t, outcome.Groups, 1)
	assert.Equal(t, []groupingdomain.Feature{groupingdomain.FeatureCompanyMatching}, outcome.FeaturesRun)
	assert.Contains(t, outcome.FeatureErrors, groupingdomain.FeatureIndustryDetection)
	assert.Contains(t, outcome.FeatureErrors, groupingdomain.FeatureRelationshipDetection)

	// Token-priced cost for the success, fallback flat rate for each
	// failure; all three recorded.
	require.Len(t, costs.recorded, 3)
	assert.InDelta(t, DefaultConfig().FallbackAnalysisCost, costs.recorded[1], 1e-9)
	assert.InDelta(t, DefaultConfig().FallbackAnalysisCost, costs.recorded[2], 1e-9)
}

type scripted struct {
	text string
	err  error
}

// scriptedClient routes by prompt substring, with "" as the catch-all.
type scriptedClient struct {
	byPrompt map[string]scripted
}

func (s *scriptedClient) Generate(ctx context.Context, modelID, prompt string) (*llm.Completion, error) {
	for key, resp := range s.byPrompt {
		if key != "" && strings.Contains(prompt, key) {
			if resp.err != nil {
				return nil, resp.err
			}
			return &llm.Completion{Text: resp.text, InputTokens: 500, OutputTokens: 100}, nil
		}
	}
	fallback := s.byPrompt[""]
	if fallback.err != nil {
		return nil, fallback.err
	}
	return &llm.Completion{Text: fallback.text, InputTokens: 500, OutputTokens: 100}, nil
}
