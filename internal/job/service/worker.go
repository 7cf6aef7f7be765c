package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
	jobdomain "github.com/heylinko/linko/internal/job/domain"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
	"go.uber.org/zap"
)

const sparseContactThreshold = 5

// run executes the pipeline for one job. It owns the job row from here
// on: every write goes through the non-terminal guard, and any panic or
// stage error finalizes the row so no job is left in processing.
func (s *Service) run(jobID, userID string, level subscriptiondomain.Level, opts groupingdomain.Options) {
	ctx := context.Background()
	log := s.log.With(zap.String("job_id", jobID), zap.String("user_id", userID))

	job, err := s.repo.FindByID(ctx, s.db, jobID)
	if err != nil {
		log.Error("job load failed", zap.Error(err))
		// Best effort: the queued row must still reach a terminal state.
		if _, failErr := s.repo.Fail(ctx, s.db, jobID, "could not load job: "+err.Error(), s.clock.Now()); failErr != nil {
			log.Error("job fail-write failed", zap.Error(failErr))
		}
		return
	}
	started := s.clock.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("pipeline panicked", zap.Any("panic", rec), zap.Stack("stack"))
			s.markFailed(ctx, job, fmt.Sprintf("internal error: %v", rec), started)
		}
	}()

	job.Status = jobdomain.StatusProcessing
	job.Progress = 5
	job.CurrentStage = jobdomain.StageFetchingContacts
	job.StartedAt = &started
	if job.StageErrors == nil {
		job.StageErrors = jobdomain.StageErrorMap{}
	}
	if len(job.Stages) == 0 {
		job.Stages = jobdomain.NewStages()
	}
	job.Stages.Begin(jobdomain.StageFetchingContacts)
	if !s.update(ctx, job) {
		return
	}

	// Stage 1: fetch the address book.
	contacts, err := s.contact.GetContacts(ctx, userID)
	if err != nil {
		s.markFailed(ctx, job, "could not load contacts: "+err.Error(), started)
		return
	}
	job.Progress = 15
	job.Stages.Complete(jobdomain.StageFetchingContacts)
	if !s.update(ctx, job) {
		return
	}

	if len(contacts) < sparseContactThreshold {
		log.Info("too few contacts for analysis", zap.Int("contacts", len(contacts)))
		s.markCompleted(ctx, job, &jobdomain.Result{
			Groups:  []contactdomain.Group{},
			Message: fmt.Sprintf("Add at least %d contacts to generate AI groups; you have %d.", sparseContactThreshold, len(contacts)),
		}, started)
		return
	}

	// Whole-job affordability pre-check. Unaffordable means no model
	// call at all; the per-feature gates inside Analyze only refine
	// this for runs that start affordable and drain mid-flight.
	estimate := s.engine.EstimateOperationCost(level, opts)
	aff, err := s.costSvc.CanAffordOperation(ctx, userID, estimate.EstimatedCost, int64(estimate.FeaturesCount))
	if err != nil {
		s.markFailed(ctx, job, "budget check failed: "+err.Error(), started)
		return
	}
	if !aff.CanAfford {
		job.StageErrors[jobdomain.StageErrorKeyAI] = jobdomain.StageError{
			Message:    aff.Reason,
			OccurredAt: s.clock.Now(),
		}
		s.markFailed(ctx, job, budgetMessage(aff), started)
		return
	}

	// Stage 2: AI analysis under a wall-clock timeout. A timeout or
	// per-feature failure degrades the result instead of failing the job.
	job.CurrentStage = jobdomain.StageAIAnalysis
	job.Stages.Begin(jobdomain.StageAIAnalysis)
	if !s.update(ctx, job) {
		return
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.cfg.AIAnalysisTimeout)
	outcome := s.engine.Analyze(aiCtx, userID, contacts, level, opts)
	cancel()

	if len(outcome.FeatureErrors) > 0 {
		job.StageErrors[jobdomain.StageErrorKeyAI] = jobdomain.StageError{
			Message:    featureErrorSummary(outcome.FeatureErrors),
			OccurredAt: s.clock.Now(),
		}
	}
	job.Progress = 85
	job.Stages.Complete(jobdomain.StageAIAnalysis)
	if !s.update(ctx, job) {
		return
	}

	// Stage 3: dedup and cap.
	job.CurrentStage = jobdomain.StageDeduplicating
	job.Stages.Begin(jobdomain.StageDeduplicating)
	unique := groupingdomain.Deduplicate(outcome.Groups)
	final := groupingdomain.Truncate(unique, opts.MaxGroups)
	job.Progress = 95
	job.Stages.Complete(jobdomain.StageDeduplicating)
	if !s.update(ctx, job) {
		return
	}

	// Stage 4: persist what survived.
	job.CurrentStage = jobdomain.StageSavingResults
	job.Stages.Begin(jobdomain.StageSavingResults)
	report, err := s.contact.SaveGeneratedGroups(ctx, userID, final)
	if err != nil {
		s.markFailed(ctx, job, "could not save groups: "+err.Error(), started)
		return
	}
	if len(report.Failed) > 0 {
		job.StageErrors[jobdomain.StageSavingResults] = jobdomain.StageError{
			Message:    fmt.Sprintf("%d groups failed to save: %s", len(report.Failed), strings.Join(report.Failed, ", ")),
			OccurredAt: s.clock.Now(),
		}
	}

	s.markCompleted(ctx, job, &jobdomain.Result{
		Groups:         final,
		TotalGenerated: len(outcome.Groups),
		TotalUnique:    len(unique),
		TotalSaved:     report.SavedCount,
	}, started)

	log.Info("grouping job completed",
		zap.Int("generated", len(outcome.Groups)),
		zap.Int("unique", len(unique)),
		zap.Int("saved", report.SavedCount),
		zap.Float64("actual_cost", outcome.TotalActualCost),
	)
}

// update writes the row through the terminality guard. A lost write
// means another path already finalized the job.
func (s *Service) update(ctx context.Context, job *jobdomain.Job) bool {
	job.UpdatedAt = s.clock.Now()
	applied, err := s.repo.Update(ctx, s.db, job)
	if err != nil {
		s.log.Error("job update failed", zap.String("job_id", job.ID), zap.Error(err))
		return false
	}
	if !applied {
		s.log.Warn("job already terminal, update dropped", zap.String("job_id", job.ID))
	}
	return applied
}

func (s *Service) markCompleted(ctx context.Context, job *jobdomain.Job, result *jobdomain.Result, started time.Time) {
	now := s.clock.Now()
	job.Status = jobdomain.StatusCompleted
	job.Progress = 100
	job.CurrentStage = jobdomain.StageSavingResults
	job.Stages.Complete(jobdomain.StageSavingResults)
	job.Result = result
	job.CompletedAt = &now
	if !s.update(ctx, job) {
		return
	}
	if s.metrics != nil {
		s.metrics.IncJobCompleted()
		s.metrics.ObserveJobDuration(now.Sub(started))
	}
}

func (s *Service) markFailed(ctx context.Context, job *jobdomain.Job, message string, started time.Time) {
	now := s.clock.Now()
	job.Status = jobdomain.StatusFailed
	job.Error = message
	job.CompletedAt = &now
	if !s.update(ctx, job) {
		return
	}
	if s.metrics != nil {
		s.metrics.IncJobFailed()
		s.metrics.ObserveJobDuration(now.Sub(started))
	}
	s.log.Warn("grouping job failed",
		zap.String("job_id", job.ID),
		zap.String("error", message),
	)
}

func budgetMessage(aff costdomain.Affordability) string {
	switch aff.Reason {
	case costdomain.ReasonRunsExceeded:
		return "Monthly AI run limit reached. Upgrade your plan or wait until next month to generate more groups."
	default:
		return fmt.Sprintf("Monthly AI budget exhausted ($%.2f remaining). Upgrade your plan or wait until next month.", aff.RemainingBudget)
	}
}

// featureErrorSummary flattens per-analysis failures into one stable,
// readable line.
func featureErrorSummary(errs map[groupingdomain.Feature]string) string {
	features := make([]string, 0, len(errs))
	for feature := range errs {
		features = append(features, string(feature))
	}
	sort.Strings(features)

	parts := make([]string, 0, len(features))
	for _, feature := range features {
		parts = append(parts, feature+": "+errs[groupingdomain.Feature(feature)])
	}
	return strings.Join(parts, "; ")
}
