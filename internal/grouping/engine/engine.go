package engine

import (
	"context"

	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
	"github.com/heylinko/linko/internal/llm"
	obsmetrics "github.com/heylinko/linko/internal/observability/metrics"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	LLM     llm.Client
	CostSvc costdomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
	Config  Config              `optional:"true"`
}

type Engine struct {
	log     *zap.Logger
	llm     llm.Client
	costSvc costdomain.Service
	metrics *obsmetrics.Metrics
	cfg     Config
}

func New(p Params) groupingdomain.Engine {
	return &Engine{
		log:     p.Log.Named("grouping.engine"),
		llm:     p.LLM,
		costSvc: p.CostSvc,
		metrics: p.Metrics,
		cfg:     p.Config.withDefaults(),
	}
}

// SelectModel is deterministic: only enterprise plus an explicit deep
// request yields the premium model.
func (e *Engine) SelectModel(level subscriptiondomain.Level, useDeepAnalysis bool) groupingdomain.ModelSpec {
	if useDeepAnalysis && level == subscriptiondomain.LevelEnterprise {
		return e.cfg.DeepModel
	}
	return e.cfg.StandardModel
}

// EstimateOperationCost is the pure pre-flight projection: no I/O, just
// the fixed per-feature estimates for what the tier and options jointly
// enable. The affordability gate is always checked against this value
// before any model call happens.
func (e *Engine) EstimateOperationCost(level subscriptiondomain.Level, opts groupingdomain.Options) groupingdomain.Estimate {
	useDeep := opts.UseDeepAnalysis && level == subscriptiondomain.LevelEnterprise
	features := groupingdomain.EnabledFeatures(level, opts)

	total := 0.0
	for _, feature := range features {
		total += e.featureEstimate(feature, useDeep)
	}

	return groupingdomain.Estimate{
		EstimatedCost:   total,
		Features:        features,
		FeaturesCount:   len(features),
		UseDeepAnalysis: useDeep,
		Model:           e.SelectModel(level, opts.UseDeepAnalysis),
	}
}

func (e *Engine) featureEstimate(feature groupingdomain.Feature, useDeep bool) float64 {
	estimate := e.cfg.FeatureEstimates[feature]
	if useDeep {
		estimate *= e.cfg.DeepEstimateMultiplier
	}
	return estimate
}

func (e *Engine) fallbackCost(useDeep bool) float64 {
	if useDeep {
		return e.cfg.FallbackDeepAnalysisCost
	}
	return e.cfg.FallbackAnalysisCost
}

// Analyze runs the enabled analyses in a fixed order. Every sub-operation
// is gated against the ledger before its model call and recorded after;
// a failing analysis is billed the fallback flat rate and does not stop
// its siblings.
func (e *Engine) Analyze(ctx context.Context, userID string, contacts []contactdomain.Contact, level subscriptiondomain.Level, opts groupingdomain.Options) groupingdomain.Outcome {
	outcome := groupingdomain.Outcome{
		FeatureErrors: map[groupingdomain.Feature]string{},
		FeatureSkips:  map[groupingdomain.Feature]string{},
	}

	useDeep := opts.UseDeepAnalysis && level == subscriptiondomain.LevelEnterprise
	model := e.SelectModel(level, opts.UseDeepAnalysis)

	runners := map[groupingdomain.Feature]func(context.Context, []contactdomain.Contact, groupingdomain.ModelSpec) (groupingdomain.AnalysisResult, error){
		groupingdomain.FeatureCompanyMatching:       e.SmartCompanyMatching,
		groupingdomain.FeatureIndustryDetection:     e.IndustryGrouping,
		groupingdomain.FeatureRelationshipDetection: e.RelationshipDetection,
	}

	for _, feature := range groupingdomain.EnabledFeatures(level, opts) {
		log := e.log.With(zap.String("user_id", userID), zap.String("feature", string(feature)))

		aff, err := e.costSvc.CanAffordOperation(ctx, userID, e.featureEstimate(feature, useDeep), 1)
		if err != nil {
			outcome.FeatureErrors[feature] = err.Error()
			e.incCall(feature, "gate_error")
			continue
		}
		if !aff.CanAfford {
			log.Info("analysis skipped by affordability gate", zap.String("reason", aff.Reason))
			outcome.FeatureErrors[feature] = aff.Reason
			e.incCall(feature, "skipped_budget")
			continue
		}

		result, err := runners[feature](ctx, contacts, model)
		if err != nil {
			log.Warn("analysis failed", zap.Error(err))
			outcome.FeatureErrors[feature] = err.Error()
			e.incCall(feature, "error")
			e.record(ctx, userID, e.fallbackCost(useDeep), model.ID, feature, map[string]any{
				"failed": true,
				"error":  err.Error(),
			})
			continue
		}
		if result.SkipReason != "" {
			log.Info("analysis skipped", zap.String("reason", result.SkipReason))
			outcome.FeatureSkips[feature] = result.SkipReason
			e.incCall(feature, "skipped_input")
			continue
		}

		outcome.Groups = append(outcome.Groups, result.Groups...)
		outcome.TotalActualCost += result.ActualCost
		outcome.FeaturesRun = append(outcome.FeaturesRun, feature)
		e.incCall(feature, "ok")
		if e.metrics != nil {
			e.metrics.AddAITokens(result.InputTokens, result.OutputTokens)
		}
		e.record(ctx, userID, result.ActualCost, model.ID, feature, map[string]any{
			"input_tokens":  result.InputTokens,
			"output_tokens": result.OutputTokens,
			"groups":        len(result.Groups),
		})
	}

	return outcome
}

func (e *Engine) record(ctx context.Context, userID string, cost float64, modelID string, feature groupingdomain.Feature, metadata map[string]any) {
	// Billing must land even when the analysis deadline already fired.
	ctx = context.WithoutCancel(ctx)
	if err := e.costSvc.RecordUsage(ctx, userID, cost, modelID, string(feature), metadata); err != nil {
		e.log.Error("usage recording failed",
			zap.String("user_id", userID),
			zap.String("feature", string(feature)),
			zap.Error(err),
		)
	}
}

func (e *Engine) incCall(feature groupingdomain.Feature, outcome string) {
	if e.metrics != nil {
		e.metrics.IncAICall(string(feature), outcome)
	}
}
