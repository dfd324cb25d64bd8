package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the membership module. Tracks mutation
// counts, failure classes, and critical path durations.
type Metrics struct {
	TransfersTotal       prometheus.Counter
	ReplacesTotal        prometheus.Counter
	NoopsTotal           prometheus.Counter
	ConflictsTotal       prometheus.Counter
	TransferBlockedTotal prometheus.Counter
	ReplaceDuration      prometheus.Histogram
	TransferDuration     prometheus.Histogram
}

// New creates a Metrics instance with all membership module metrics registered.
func New() *Metrics {
	return &Metrics{
		TransfersTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "modelgov_membership_transfers_total",
			Help: "Total number of successful single-model transfers",
		}),
		ReplacesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "modelgov_membership_replaces_total",
			Help: "Total number of successful plan membership replacements",
		}),
		NoopsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "modelgov_membership_noops_total",
			Help: "Total number of membership mutations that were idempotent no-ops",
		}),
		ConflictsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "modelgov_membership_conflicts_total",
			Help: "Total number of retryable lock re-validation conflicts",
		}),
		TransferBlockedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "modelgov_membership_transfer_blocked_total",
			Help: "Total number of mutations rejected by an executing cycle",
		}),
		ReplaceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "modelgov_membership_replace_duration_seconds",
			Help:    "Duration of ReplacePlanModels operations including lock waits",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "modelgov_membership_transfer_duration_seconds",
			Help:    "Duration of TransferModel operations including lock waits",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveReplace records the duration of a ReplacePlanModels operation.
func (m *Metrics) ObserveReplace(start time.Time) {
	m.ReplaceDuration.Observe(time.Since(start).Seconds())
}

// ObserveTransfer records the duration of a TransferModel operation.
func (m *Metrics) ObserveTransfer(start time.Time) {
	m.TransferDuration.Observe(time.Since(start).Seconds())
}
