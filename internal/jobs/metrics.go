// Package jobmetrics instruments background job runs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by all job handlers.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	globalOnce sync.Once
	global     *Metrics
)

// NewMetrics binds the job collectors to reg. Passing nil binds them to
// the process-wide default registerer exactly once, so the worker and
// its tests can share the constructor.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		globalOnce.Do(func() { global = register(prometheus.DefaultRegisterer) })
		return global
	}
	return register(reg)
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finvera_jobs_total",
			Help: "Job runs by job name and outcome.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finvera_jobs_failures_total",
			Help: "Failed job runs by job name.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finvera_job_duration_seconds",
			Help:    "Job run duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.failures, m.duration)
	return m
}

// Tracker times a single job run.
type Tracker struct {
	m     *Metrics
	job   string
	start time.Time
}

// Track starts timing one run of job. Safe on a nil Metrics.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{m: m, job: job, start: time.Now()}
}

// End records the run outcome and passes err through, so handlers can
// write `return tracker.End(work())`.
func (t *Tracker) End(err error) error {
	if t == nil || t.m == nil {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.m.failures.WithLabelValues(t.job).Inc()
	}
	t.m.runs.WithLabelValues(t.job, status).Inc()
	t.m.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}
