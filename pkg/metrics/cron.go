package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job run results.
const (
	JobSucceeded = "success"
	JobFailed    = "failure"
	JobTimedOut  = "timeout"
	JobPanicked  = "panic"
)

// Cycle outcomes.
const (
	CycleRan       = "ran"
	CycleSkipped   = "skipped"
	CycleLockError = "lock_error"
)

// CronMetrics covers the cron worker: one series per job run result, run
// durations, cycle outcomes and the last successful run per job.
type CronMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	cycles      *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronMetrics(reg prometheus.Registerer) *CronMetrics {
	if reg == nil {
		return &CronMetrics{}
	}
	m := &CronMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cron_job_runs_total",
			Help: "Cron job runs by job and result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_cron_job_duration_seconds",
			Help:    "Cron job run duration.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"job"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cron_cycles_total",
			Help: "Scheduler cycles by outcome.",
		}, []string{"outcome"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "storefront_cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.cycles, m.lastSuccess)
	return m
}

// ObserveRun records one finished job run.
func (c *CronMetrics) ObserveRun(job, result string, took time.Duration) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.runs.WithLabelValues(job, normalizeLabel(result)).Inc()
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if result == JobSucceeded {
		c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}

func (c *CronMetrics) IncCycle(outcome string) {
	if c == nil || c.cycles == nil {
		return
	}
	c.cycles.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
