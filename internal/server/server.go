package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heylinko/linko/internal/clock"
	"github.com/heylinko/linko/internal/config"
	"github.com/heylinko/linko/internal/contact"
	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	"github.com/heylinko/linko/internal/costtracking"
	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	"github.com/heylinko/linko/internal/grouping"
	groupingdomain "github.com/heylinko/linko/internal/grouping/domain"
	"github.com/heylinko/linko/internal/job"
	jobdomain "github.com/heylinko/linko/internal/job/domain"
	"github.com/heylinko/linko/internal/llm"
	"github.com/heylinko/linko/internal/migration"
	"github.com/heylinko/linko/internal/observability"
	obslogger "github.com/heylinko/linko/internal/observability/logger"
	obsmetrics "github.com/heylinko/linko/internal/observability/metrics"
	"github.com/heylinko/linko/internal/subscription"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
	"github.com/heylinko/linko/internal/taskrunner"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	config.Module,
	observability.Module,
	clock.Module,
	taskrunner.Module,
	llm.Module,
	migration.Module,
	contact.Module,
	subscription.Module,
	costtracking.Module,
	grouping.Module,
	job.Module,
	fx.Provide(newEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func newEngine(log *zap.Logger, metrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	return r
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	ContactSvc contactdomain.Service
	SubSvc     subscriptiondomain.Service
	CostSvc    costdomain.Service
	Engine     groupingdomain.Engine
	JobSvc     jobdomain.Service
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	contactSvc contactdomain.Service
	subSvc     subscriptiondomain.Service
	costSvc    costdomain.Service
	groupEng   groupingdomain.Engine
	jobSvc     jobdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		contactSvc: p.ContactSvc,
		subSvc:     p.SubSvc,
		costSvc:    p.CostSvc,
		groupEng:   p.Engine,
		jobSvc:     p.JobSvc,
	}
	svc.registerRoutes()
	return svc
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1", RequireUser())

	v1.POST("/ai/grouping/jobs", s.startGroupingJob)
	v1.GET("/ai/grouping/jobs", s.listGroupingJobs)
	v1.GET("/ai/grouping/jobs/:id", s.getGroupingJob)
	v1.POST("/ai/grouping/estimate", s.estimateGrouping)

	v1.GET("/usage", s.getMonthlyUsage)
	v1.GET("/usage/warnings", s.getUsageWarnings)
	v1.GET("/usage/operations", s.listUsageOperations)

	v1.POST("/contacts", s.createContact)
	v1.GET("/contacts", s.listContacts)
	v1.GET("/groups", s.listGroups)

	v1.PUT("/subscription", s.setSubscription)
	v1.GET("/subscription", s.getSubscription)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
