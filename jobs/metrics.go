package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for background jobs.
type Metrics struct {
	Triggered *prometheus.CounterVec
	Completed *prometheus.CounterVec
	Running   *prometheus.GaugeVec
	Duration  *prometheus.HistogramVec
}

// NewMetrics constructs all collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	triggered := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_triggered_total",
			Help: "Job trigger attempts by outcome.",
		},
		[]string{"job", "outcome"},
	)
	completed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Finished job runs by status.",
		},
		[]string{"job", "status"},
	)
	running := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_running",
			Help: "1 while a job of the kind is running.",
		},
		[]string{"job"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobs_duration_seconds",
			Help:    "Wall time of finished job runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"job"},
	)

	if reg != nil {
		reg.MustRegister(triggered, completed, running, duration)
	}

	return &Metrics{
		Triggered: triggered,
		Completed: completed,
		Running:   running,
		Duration:  duration,
	}
}

func (m *Metrics) trigger(kind Kind, outcome Outcome) {
	if m == nil {
		return
	}
	m.Triggered.WithLabelValues(string(kind), outcome.String()).Inc()
}

func (m *Metrics) started(kind Kind) {
	if m == nil {
		return
	}
	m.Running.WithLabelValues(string(kind)).Set(1)
}

func (m *Metrics) finished(kind Kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Running.WithLabelValues(string(kind)).Set(0)
	m.Completed.WithLabelValues(string(kind), status).Inc()
	m.Duration.WithLabelValues(string(kind)).Observe(d.Seconds())
}
