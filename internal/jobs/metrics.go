package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by every background job.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	sweepOrders *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or once on the default
// registerer when nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer != nil {
		return register(registerer)
	}
	defaultOnce.Do(func() {
		defaultMetrics = register(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func register(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_jobs_total",
			Help: "Job executions by task type and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_jobs_failures_total",
			Help: "Failed job executions by task type.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentflow_job_duration_seconds",
			Help:    "Job execution time by task type.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rentflow_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run by task type.",
		}, []string{"job"}),
		sweepOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_sweep_orders_total",
			Help: "Orders touched by the expiration sweep, by branch and outcome.",
		}, []string{"branch", "outcome"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.lastSuccess, m.sweepOrders)
	return m
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the run and returns err unchanged so handlers can write
// `defer func() { err = tracker.End(err) }()`.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	m := t.metrics
	m.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	if err != nil {
		m.failures.WithLabelValues(t.job).Inc()
		m.runs.WithLabelValues(t.job, "failure").Inc()
		return err
	}
	m.runs.WithLabelValues(t.job, "success").Inc()
	m.lastSuccess.WithLabelValues(t.job).SetToCurrentTime()
	return nil
}

// SweepCounts is the per-outcome tally of one sweep.
type SweepCounts struct {
	Expired int
	Overdue int
	Skipped int
	Failed  int
}

// RecordSweep adds a sweep tally for branchID. Branch 0 is the all-branches
// backstop run.
func (m *Metrics) RecordSweep(branchID int64, c SweepCounts) {
	if m == nil {
		return
	}
	branch := strconv.FormatInt(max(branchID, 0), 10)
	for outcome, n := range map[string]int{
		"expired": c.Expired,
		"overdue": c.Overdue,
		"skipped": c.Skipped,
		"failed":  c.Failed,
	} {
		if n > 0 {
			m.sweepOrders.WithLabelValues(branch, outcome).Add(float64(n))
		}
	}
}
