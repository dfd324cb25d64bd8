package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for scope resolution and materialization.
type Metrics struct {
	ResolvedTotal      *prometheus.CounterVec
	ResolveDuration    prometheus.Histogram
	MaterializedTotal  prometheus.Counter
	MaterializeSkipped prometheus.Counter
}

// New creates a Metrics instance with all cycle module metrics registered.
func New() *Metrics {
	return &Metrics{
		ResolvedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "modelgov_cycle_scope_resolved_total",
			Help: "Total scope resolutions by winning source",
		}, []string{"source"}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "modelgov_cycle_scope_resolve_duration_seconds",
			Help:    "Duration of scope resolution including name lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		MaterializedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "modelgov_cycle_scope_materialized_total",
			Help: "Total cycles whose scope was frozen",
		}),
		MaterializeSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "modelgov_cycle_scope_materialize_skipped_total",
			Help: "Total materialize calls skipped because scope already existed",
		}),
	}
}

// ObserveResolve records the duration of one resolution.
func (m *Metrics) ObserveResolve(start time.Time) {
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}
