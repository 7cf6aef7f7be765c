package engine

import groupingdomain "github.com/heylinko/linko/internal/grouping/domain"

// Config carries the engine's pricing table and input bounds. The
// fallback flat rates billed for failed analyses are placeholders until
// real pricing lands; they are configuration, not business logic.
type Config struct {
	StandardModel groupingdomain.ModelSpec
	DeepModel     groupingdomain.ModelSpec

	FeatureEstimates       map[groupingdomain.Feature]float64
	DeepEstimateMultiplier float64

	FallbackAnalysisCost     float64
	FallbackDeepAnalysisCost float64

	MinCompanies            int
	MaxCompanies            int
	MinIndustryContacts     int
	MinRelationshipContacts int
}

// DefaultConfig mirrors the production pricing table.
func DefaultConfig() Config {
	return Config{
		StandardModel: groupingdomain.ModelSpec{
			ID:                 "gpt-4o-mini",
			InputPricePerMTok:  0.15,
			OutputPricePerMTok: 0.60,
		},
		DeepModel: groupingdomain.ModelSpec{
			ID:                 "gpt-4o",
			InputPricePerMTok:  2.50,
			OutputPricePerMTok: 10.00,
		},
		FeatureEstimates: map[groupingdomain.Feature]float64{
			groupingdomain.FeatureCompanyMatching:       0.010,
			groupingdomain.FeatureIndustryDetection:     0.015,
			groupingdomain.FeatureRelationshipDetection: 0.020,
		},
		DeepEstimateMultiplier: 4.0,

		FallbackAnalysisCost:     0.005,
		FallbackDeepAnalysisCost: 0.010,

		MinCompanies:            2,
		MaxCompanies:            50,
		MinIndustryContacts:     10,
		MinRelationshipContacts: 5,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.StandardModel.ID == "" {
		c.StandardModel = def.StandardModel
	}
	if c.DeepModel.ID == "" {
		c.DeepModel = def.DeepModel
	}
	if c.FeatureEstimates == nil {
		c.FeatureEstimates = def.FeatureEstimates
	}
	if c.DeepEstimateMultiplier == 0 {
		c.DeepEstimateMultiplier = def.DeepEstimateMultiplier
	}
	if c.FallbackAnalysisCost == 0 {
		c.FallbackAnalysisCost = def.FallbackAnalysisCost
	}
	if c.FallbackDeepAnalysisCost == 0 {
		c.FallbackDeepAnalysisCost = def.FallbackDeepAnalysisCost
	}
	if c.MinCompanies == 0 {
		c.MinCompanies = def.MinCompanies
	}
	if c.MaxCompanies == 0 {
		c.MaxCompanies = def.MaxCompanies
	}
	if c.MinIndustryContacts == 0 {
		c.MinIndustryContacts = def.MinIndustryContacts
	}
	if c.MinRelationshipContacts == 0 {
		c.MinRelationshipContacts = def.MinRelationshipContacts
	}
	return c
}
