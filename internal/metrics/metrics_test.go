package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PhaseDuration.WithLabelValues("planning").Observe(12.5)
	m.PhaseCost.WithLabelValues("planning").Set(0.8)
	m.RetryTotal.WithLabelValues("planning").Inc()
	m.FallbackTotal.WithLabelValues("planning", "success").Inc()
	m.BudgetRemaining.Set(9.2)
	m.PhasesComplete.Inc()
	m.PhasesFailed.WithLabelValues("planning", "TRANSIENT").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"forge_phase_duration_seconds",
		"forge_phase_cost_usd",
		"forge_phase_retry_total",
		"forge_phase_fallback_total",
		"forge_budget_remaining_usd",
		"forge_phases_complete_total",
		"forge_phases_failed_total",
	}, names)
}

func TestCollectorsAccumulate(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RetryTotal.WithLabelValues("lint_check").Inc()
	m.RetryTotal.WithLabelValues("lint_check").Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetryTotal.WithLabelValues("lint_check")))

	m.PhaseCost.WithLabelValues("research").Set(0.5)
	m.PhaseCost.WithLabelValues("research").Set(1.25)
	assert.Equal(t, 1.25, testutil.ToFloat64(m.PhaseCost.WithLabelValues("research")))

	m.BudgetRemaining.Set(4.75)
	assert.Equal(t, 4.75, testutil.ToFloat64(m.BudgetRemaining))
}

func TestFallbackOutcomesTrackedSeparately(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.FallbackTotal.WithLabelValues("implementation", "success").Inc()
	m.FallbackTotal.WithLabelValues("implementation", "failure").Inc()
	m.FallbackTotal.WithLabelValues("implementation", "failure").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackTotal.WithLabelValues("implementation", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FallbackTotal.WithLabelValues("implementation", "failure")))
}
