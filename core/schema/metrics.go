package schema

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts applier runs and per-column outcomes. A nil *Metrics is a
// no-op.
type Metrics struct {
	Runs     *prometheus.CounterVec
	Outcomes *prometheus.CounterVec
	Duration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetops",
			Subsystem: "schema",
			Name:      "runs_total",
			Help:      "Schema migration runs by result (ok, partial, error).",
		}, []string{"result"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetops",
			Subsystem: "schema",
			Name:      "column_outcomes_total",
			Help:      "Per-column schema migration outcomes.",
		}, []string{"table", "action"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fleetops",
			Subsystem: "schema",
			Name:      "run_duration_seconds",
			Help:      "Duration of completed schema migration runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.Outcomes, m.Duration)
	}
	return m
}

func (m *Metrics) observe(r *Report) {
	if m == nil || r == nil {
		return
	}
	result := "ok"
	if r.HasFailures() {
		result = "partial"
	}
	m.Runs.WithLabelValues(result).Inc()
	m.Duration.Observe(r.Duration.Seconds())
	for _, o := range r.Outcomes {
		m.Outcomes.WithLabelValues(string(o.Spec.Table), o.Action.String()).Inc()
	}
}

func (m *Metrics) observeError() {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues("error").Inc()
}
