// Package metrics exposes prometheus instruments for the grouping pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the instruments shared by the job pipeline and cost tracking.
type Metrics struct {
	registry *prometheus.Registry

	jobsStarted   prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	jobDuration   prometheus.Histogram

	aiCalls  *prometheus.CounterVec
	aiTokens *prometheus.CounterVec

	usageRecorded *prometheus.CounterVec
	usageCost     *prometheus.CounterVec
}

// New registers the pipeline instruments on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linko_grouping_jobs_started_total",
			Help: "AI grouping jobs started.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linko_grouping_jobs_completed_total",
			Help: "AI grouping jobs that reached completed.",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linko_grouping_jobs_failed_total",
			Help: "AI grouping jobs that reached failed.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "linko_grouping_job_duration_seconds",
			Help:    "Wall-clock duration of finished grouping jobs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		aiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linko_ai_calls_total",
			Help: "Model calls by analysis feature and outcome.",
		}, []string{"feature", "outcome"}),
		aiTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linko_ai_tokens_total",
			Help: "Model tokens by direction.",
		}, []string{"direction"}),
		usageRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linko_usage_operations_total",
			Help: "Billable operations recorded on the ledger.",
		}, []string{"feature"}),
		usageCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linko_usage_cost_usd_total",
			Help: "Actual cost recorded on the ledger, in USD.",
		}, []string{"feature"}),
	}

	registry.MustRegister(
		m.jobsStarted,
		m.jobsCompleted,
		m.jobsFailed,
		m.jobDuration,
		m.aiCalls,
		m.aiTokens,
		m.usageRecorded,
		m.usageCost,
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) IncJobStarted()   { m.jobsStarted.Inc() }
func (m *Metrics) IncJobCompleted() { m.jobsCompleted.Inc() }
func (m *Metrics) IncJobFailed()    { m.jobsFailed.Inc() }

func (m *Metrics) ObserveJobDuration(d time.Duration) {
	m.jobDuration.Observe(d.Seconds())
}

func (m *Metrics) IncAICall(feature, outcome string) {
	m.aiCalls.WithLabelValues(feature, outcome).Inc()
}

func (m *Metrics) AddAITokens(inputTokens, outputTokens int) {
	m.aiTokens.WithLabelValues("input").Add(float64(inputTokens))
	m.aiTokens.WithLabelValues("output").Add(float64(outputTokens))
}

func (m *Metrics) RecordUsage(feature string, cost float64) {
	m.usageRecorded.WithLabelValues(feature).Inc()
	m.usageCost.WithLabelValues(feature).Add(cost)
}
