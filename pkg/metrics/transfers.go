package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TransferMetrics tracks state transitions and auto-promotion runs.
type TransferMetrics struct {
	transitions *prometheus.CounterVec
	promoted    *prometheus.CounterVec
	failed      *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewTransferMetrics registers transfer metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewTransferMetrics(reg prometheus.Registerer) *TransferMetrics {
	if reg == nil {
		return &TransferMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_transitions_total",
		Help: "Transfer status transitions by source and target status.",
	}, []string{"from", "to"})
	promoted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_promotions_total",
		Help: "Drafts promoted to pending.",
	}, []string{"trigger"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_promotion_failures_total",
		Help: "Drafts that could not be promoted.",
	}, []string{"trigger"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "transfer_reconcile_duration_seconds",
		Help:    "Duration of draft reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(transitions, promoted, failed, runDuration)
	return &TransferMetrics{
		transitions: transitions,
		promoted:    promoted,
		failed:      failed,
		runDuration: runDuration,
	}
}

// IncTransition counts one transition.
func (m *TransferMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// AddPromoted counts drafts promoted by a reconcile trigger.
func (m *TransferMetrics) AddPromoted(trigger string, n int) {
	if m == nil || m.promoted == nil || n <= 0 {
		return
	}
	m.promoted.WithLabelValues(normalizeLabel(trigger)).Add(float64(n))
}

// AddFailed counts drafts that failed promotion.
func (m *TransferMetrics) AddFailed(trigger string, n int) {
	if m == nil || m.failed == nil || n <= 0 {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(trigger)).Add(float64(n))
}

// ObserveRun records how long a reconcile run took.
func (m *TransferMetrics) ObserveRun(duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())
}
