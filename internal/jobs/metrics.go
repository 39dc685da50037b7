// Package jobmetrics instruments background job runs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	records  *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker times a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records duration and status and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// SetRecords publishes how many records a job loaded for a resource.
func (m *Metrics) SetRecords(job, resource string, n int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(job, resource).Set(float64(n))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billdesk_jobs_total",
		Help: "Job executions by job name and status.",
	}, []string{"job", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billdesk_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	records := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "billdesk_job_records",
		Help: "Records loaded by the last run of a job, per resource.",
	}, []string{"job", "resource"})
	registerer.MustRegister(runs, duration, records)
	return &Metrics{runs: runs, duration: duration, records: records}
}
