// Package metrics exposes reconciler counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "evshift"

// Pass results
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Metrics groups the reconciler collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	passes       *prometheus.CounterVec
	examined     prometheus.Counter
	transitions  *prometheus.CounterVec
	conflicts    prometheus.Counter
	errors       prometheus.Counter
	passDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_passes_total",
			Help:      "Reconciliation passes by result.",
		}, []string{"result"}),
		examined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shifts_examined_total",
			Help:      "Shifts evaluated by the state machine.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shift_transitions_total",
			Help:      "Status changes written by the reconciler.",
		}, []string{"from", "to"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shift_conflicts_total",
			Help:      "Conditional writes rejected because the shift changed after it was read.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shift_errors_total",
			Help:      "Shifts that failed to process during a pass.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_pass_duration_seconds",
			Help:      "Wall time of completed reconciliation passes.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	reg.MustRegister(m.passes, m.examined, m.transitions, m.conflicts, m.errors, m.passDuration)
	return m
}

// PassSkipped records a trigger that found another pass still running.
func (m *Metrics) PassSkipped() {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(ResultSkipped).Inc()
}

// PassFailed records a pass aborted before any shift was processed.
func (m *Metrics) PassFailed() {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(ResultFailed).Inc()
}

// PassCompleted records the totals of a finished pass.
func (m *Metrics) PassCompleted(examined, conflicts, errored int, took time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(ResultOK).Inc()
	m.examined.Add(float64(examined))
	m.conflicts.Add(float64(conflicts))
	m.errors.Add(float64(errored))
	m.passDuration.Observe(took.Seconds())
}

// Transition records one applied status change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}
