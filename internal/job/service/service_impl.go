package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/heylinko/linko/internal/clock"
	"github.com/heylinko/linko/internal/config"
	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
	jobdomain "github.com/heylinko/linko/internal/job/domain"
	obsmetrics "github.com/heylinko/linko/internal/observability/metrics"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
	"github.com/heylinko/linko/internal/taskrunner"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Estimated duration: a fixed pipeline overhead plus a per-analysis
// allowance. Clients use this to seed their progress UI only.
const (
	baseDurationSeconds       = 15
	perFeatureDurationSeconds = 20
)

const defaultListLimit = 20

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Config  config.Config
	Runner  *taskrunner.Runner
	Repo    jobdomain.Repository
	Contact contactdomain.Service
	SubSvc  subscriptiondomain.Service
	CostSvc costdomain.Service
	Engine  groupingdomain.Engine
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.Config
	runner  *taskrunner.Runner
	repo    jobdomain.Repository
	contact contactdomain.Service
	subSvc  subscriptiondomain.Service
	costSvc costdomain.Service
	engine  groupingdomain.Engine
	metrics *obsmetrics.Metrics
}

func New(p Params) jobdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("job.service"),
		clock:   p.Clock,
		cfg:     p.Config,
		runner:  p.Runner,
		repo:    p.Repo,
		contact: p.Contact,
		subSvc:  p.SubSvc,
		costSvc: p.CostSvc,
		engine:  p.Engine,
		metrics: p.Metrics,
	}
}

// StartAIGroupingJob persists the queued job synchronously, then hands
// the pipeline to the task runner. The caller's context is not carried
// into the pipeline: the job outlives the request.
func (s *Service) StartAIGroupingJob(ctx context.Context, userID string, opts groupingdomain.Options) (jobdomain.StartResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return jobdomain.StartResponse{}, jobdomain.ErrInvalidUser
	}
	if opts.MaxGroups <= 0 {
		opts.MaxGroups = groupingdomain.DefaultMaxGroups
	}

	level, err := s.subSvc.GetLevel(ctx, userID)
	if err != nil {
		return jobdomain.StartResponse{}, err
	}
	estimate := s.engine.EstimateOperationCost(level, opts)

	now := s.clock.Now()
	job := &jobdomain.Job{
		ID:           uuid.NewString(),
		UserID:       userID,
		Status:       jobdomain.StatusQueued,
		Progress:     0,
		CurrentStage: jobdomain.StageFetchingContacts,
		Stages:       jobdomain.NewStages(),
		Options:      opts,
		StageErrors:  jobdomain.StageErrorMap{},

		EstimatedDurationSeconds: baseDurationSeconds + perFeatureDurationSeconds*estimate.FeaturesCount,

		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, job); err != nil {
		return jobdomain.StartResponse{}, err
	}

	if !s.runner.Go("grouping_job:"+job.ID, func() {
		s.run(job.ID, userID, level, opts)
	}) {
		return jobdomain.StartResponse{}, jobdomain.ErrJobRejected
	}

	if s.metrics != nil {
		s.metrics.IncJobStarted()
	}
	s.log.Info("grouping job queued",
		zap.String("job_id", job.ID),
		zap.String("user_id", userID),
		zap.String("level", string(level)),
		zap.Int("features", estimate.FeaturesCount),
	)

	return jobdomain.StartResponse{
		JobID:                    job.ID,
		Status:                   jobdomain.StatusQueued,
		EstimatedDurationSeconds: job.EstimatedDurationSeconds,
	}, nil
}

func (s *Service) GetJobStatus(ctx context.Context, userID, jobID string) (*jobdomain.Job, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, jobdomain.ErrInvalidUser
	}

	job, err := s.repo.FindByID(ctx, s.db, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, jobdomain.ErrJobForbidden
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context, userID string) ([]jobdomain.Job, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, jobdomain.ErrInvalidUser
	}
	return s.repo.ListByUser(ctx, s.db, userID, defaultListLimit)
}
