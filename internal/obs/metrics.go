// Package obs implements the ambient observability surface: Prometheus
// counters/histograms for turns, rounds, tool calls, and provider
// attempts, plus the LLM call-log collaborator, in the style of an
// internal/observability package.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/histogram the runtime records. Built
// against a caller-supplied registry (rather than the global default
// registry promauto normally targets) so that tests can construct a
// fresh Metrics per case without a duplicate-registration panic.
type Metrics struct {
	TurnsTotal       *prometheus.CounterVec
	RoundsPerTurn    prometheus.Histogram
	ToolCallsTotal   *prometheus.CounterVec
	ProviderAttempts *prometheus.CounterVec
	TurnLatency      prometheus.Histogram
}

// NewMetrics registers every metric against reg. Pass
// prometheus.NewRegistry() in tests; pass prometheus.DefaultRegisterer
// (wrapped by prometheus.WrapRegistererWith or used directly via
// NewProductionMetrics) in a long-lived process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	fac := promauto.With(reg)
	return &Metrics{
		TurnsTotal: fac.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_turns_total",
				Help: "Total number of turns completed, by termination reason.",
			},
			[]string{"reason"},
		),
		RoundsPerTurn: fac.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentcore_rounds_per_turn",
				Help:    "Number of LLM rounds consumed per turn.",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 20},
			},
		),
		ToolCallsTotal: fac.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_calls_total",
				Help: "Total number of tool calls dispatched, by tool name and outcome.",
			},
			[]string{"tool", "outcome"},
		),
		ProviderAttempts: fac.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_provider_attempts_total",
				Help: "Total number of provider attempts, by label and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		TurnLatency: fac.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentcore_turn_latency_seconds",
				Help:    "Wall-clock duration of a turn in seconds.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
	}
}

// NewProductionMetrics registers against the Prometheus default
// registry, for wiring into a long-lived process's /metrics endpoint.
func NewProductionMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}
