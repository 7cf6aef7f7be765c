// Package domain defines the grouping engine's options, cost model and
// analysis results.
package domain

import (
	"context"
	"errors"

	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
)

// Feature identifies one of the three independent AI analyses.
type Feature string

const (
	FeatureCompanyMatching       Feature = "company_matching"
	FeatureIndustryDetection     Feature = "industry_detection"
	FeatureRelationshipDetection Feature = "relationship_detection"
)

// Options selects which analyses run and how many groups survive.
type Options struct {
	GroupByCompany       bool `json:"group_by_company"`
	GroupByIndustry      bool `json:"group_by_industry"`
	GroupByRelationships bool `json:"group_by_relationships"`
	UseDeepAnalysis      bool `json:"use_deep_analysis"`
	MaxGroups            int  `json:"max_groups"`
}

// DefaultMaxGroups caps the deduplicated result when the caller sets none.
const DefaultMaxGroups = 10

// DefaultOptions enables every analysis the tier allows.
func DefaultOptions() Options {
	return Options{
		GroupByCompany:       true,
		GroupByIndustry:      true,
		GroupByRelationships: true,
		MaxGroups:            DefaultMaxGroups,
	}
}

// featureMatrix gates analyses by tier. Company matching is available
// everywhere; the heavier analyses unlock with higher tiers.
var featureMatrix = map[Feature]map[subscriptiondomain.Level]bool{
	FeatureCompanyMatching: {
		subscriptiondomain.LevelBase: true, subscriptiondomain.LevelPro: true,
		subscriptiondomain.LevelPremium: true, subscriptiondomain.LevelBusiness: true,
		subscriptiondomain.LevelEnterprise: true,
	},
	FeatureIndustryDetection: {
		subscriptiondomain.LevelPro: true, subscriptiondomain.LevelPremium: true,
		subscriptiondomain.LevelBusiness: true, subscriptiondomain.LevelEnterprise: true,
	},
	FeatureRelationshipDetection: {
		subscriptiondomain.LevelPremium: true, subscriptiondomain.LevelBusiness: true,
		subscriptiondomain.LevelEnterprise: true,
	},
}

// FeatureEnabled reports whether the tier includes the analysis at all.
func FeatureEnabled(level subscriptiondomain.Level, feature Feature) bool {
	return featureMatrix[feature][level]
}

// EnabledFeatures intersects the caller's options with the tier matrix,
// in the fixed execution order.
func EnabledFeatures(level subscriptiondomain.Level, opts Options) []Feature {
	var features []Feature
	if opts.GroupByCompany && FeatureEnabled(level, FeatureCompanyMatching) {
		features = append(features, FeatureCompanyMatching)
	}
	if opts.GroupByIndustry && FeatureEnabled(level, FeatureIndustryDetection) {
		features = append(features, FeatureIndustryDetection)
	}
	if opts.GroupByRelationships && FeatureEnabled(level, FeatureRelationshipDetection) {
		features = append(features, FeatureRelationshipDetection)
	}
	return features
}

// ModelSpec carries a model id and its per-million-token prices.
type ModelSpec struct {
	ID                 string  `json:"id"`
	InputPricePerMTok  float64 `json:"input_price_per_mtok"`
	OutputPricePerMTok float64 `json:"output_price_per_mtok"`
}

// Cost converts the provider's reported token counts into dollars.
func (m ModelSpec) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*m.InputPricePerMTok +
		float64(outputTokens)/1e6*m.OutputPricePerMTok
}

// Estimate is the pure pre-flight cost projection the affordability gate
// is checked against. EstimatedCost and any later ActualCost are distinct
// values and are expected to diverge.
type Estimate struct {
	EstimatedCost   float64   `json:"estimated_cost"`
	Features        []Feature `json:"features"`
	FeaturesCount   int       `json:"features_count"`
	UseDeepAnalysis bool      `json:"use_deep_analysis"`
	Model           ModelSpec `json:"model"`
}

// AnalysisResult is the outcome of a single analysis: candidate groups
// plus the token-derived actual cost of producing them.
type AnalysisResult struct {
	Groups       []contactdomain.Group
	ActualCost   float64
	InputTokens  int
	OutputTokens int

	// SkipReason is set when input constraints rejected the analysis
	// before any model call; no cost accrues.
	SkipReason string
}

// Skip reasons for input-bound rejections.
const (
	SkipTooFewCompanies            = "too_few_companies"
	SkipTooManyCompanies           = "too_many_companies"
	SkipTooFewContactsIndustry     = "too_few_contacts_for_industry"
	SkipTooFewContactsRelationship = "too_few_contacts_for_relationships"
)

// Outcome aggregates the composite analysis. Failures and skips are
// reported per feature; one failing analysis never hides its siblings'
// groups.
type Outcome struct {
	Groups          []contactdomain.Group
	TotalActualCost float64
	FeaturesRun     []Feature
	FeatureErrors   map[Feature]string
	FeatureSkips    map[Feature]string
}

type Engine interface {
	EstimateOperationCost(level subscriptiondomain.Level, opts Options) Estimate
	SelectModel(level subscriptiondomain.Level, useDeepAnalysis bool) ModelSpec

	SmartCompanyMatching(ctx context.Context, contacts []contactdomain.Contact, model ModelSpec) (AnalysisResult, error)
	IndustryGrouping(ctx context.Context, contacts []contactdomain.Contact, model ModelSpec) (AnalysisResult, error)
	RelationshipDetection(ctx context.Context, contacts []contactdomain.Contact, model ModelSpec) (AnalysisResult, error)

	// Analyze runs every enabled analysis sequentially, gating and
	// recording each against the cost ledger. It always returns an
	// Outcome; per-feature failures land in FeatureErrors.
	Analyze(ctx context.Context, userID string, contacts []contactdomain.Contact, level subscriptiondomain.Level, opts Options) Outcome
}

var ErrNoParseableJSON = errors.New("no_parseable_json")
