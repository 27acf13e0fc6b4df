// Package metrics exposes in-process observability for a workflow run —
// phase duration, cost per phase, retry/fallback counts and remaining
// budget — as prometheus collectors. Additive next to the notifier
// fan-out, not a replacement for it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector one workflow run reports to.
type Registry struct {
	PhaseDuration  *prometheus.HistogramVec
	PhaseCost      *prometheus.GaugeVec
	RetryTotal     *prometheus.CounterVec
	FallbackTotal  *prometheus.CounterVec
	BudgetRemaining prometheus.Gauge
	PhasesComplete prometheus.Counter
	PhasesFailed   *prometheus.CounterVec
}

// New constructs a Registry and registers every collector with reg.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forge",
			Name:      "phase_duration_seconds",
			Help:      "Wall-clock duration of a phase run, including retries.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"phase"}),
		PhaseCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "forge",
			Name:      "phase_cost_usd",
			Help:      "Cumulative USD cost attributed to a phase in the current run.",
		}, []string{"phase"}),
		RetryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "phase_retry_total",
			Help:      "Within-phase retry attempts, by phase.",
		}, []string{"phase"}),
		FallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "phase_fallback_total",
			Help:      "Fallback-executor attempts, by phase and outcome.",
		}, []string{"phase", "outcome"}),
		BudgetRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "forge",
			Name:      "budget_remaining_usd",
			Help:      "Unspent budget for the current run.",
		}),
		PhasesComplete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "phases_complete_total",
			Help:      "Phases that completed successfully, across all runs this process has driven.",
		}),
		PhasesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forge",
			Name:      "phases_failed_total",
			Help:      "Phases that failed terminally, by failure category.",
		}, []string{"phase", "category"}),
	}

	reg.MustRegister(
		m.PhaseDuration,
		m.PhaseCost,
		m.RetryTotal,
		m.FallbackTotal,
		m.BudgetRemaining,
		m.PhasesComplete,
		m.PhasesFailed,
	)
	return m
}
