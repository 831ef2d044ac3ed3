package migrate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tabledef"

// Metrics counts migration runs and the statements they execute
type Metrics struct {
	runs       *prometheus.CounterVec
	statements *prometheus.CounterVec
	duration   prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_runs_total",
			Help:      "Migration runs by outcome.",
		}, []string{"outcome"}),
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_statements_total",
			Help:      "Statements executed or skipped by migrations.",
		}, []string{"kind", "result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "migration_duration_seconds",
			Help:      "Wall time of a migration run.",
		}),
	}
}

// Collectors returns the collectors to register
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.statements, m.duration}
}

func (m *Metrics) statement(kind, result string) {
	if m == nil {
		return
	}
	m.statements.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) run(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(time.Since(started).Seconds())
}
