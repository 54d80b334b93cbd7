package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "thalibox"

// Cron run outcomes.
const (
	CronSucceeded = "success"
	CronFailed    = "failure"
)

// CronJobMetrics tracks each scheduled job's runs. The last-success gauge is
// what alerts key on: a job that silently stops running never fails.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Cron job wall time.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"job"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	}
	return m
}

// Observe records one finished run of job.
func (m *CronJobMetrics) Observe(job string, took time.Duration, err error) {
	if m == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, CronFailed).Inc()
		return
	}
	m.runs.WithLabelValues(job, CronSucceeded).Inc()
	m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

// normalizeLabel keeps empty label values out of the series set.
func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
