// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus collectors for the tuning engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "atrwac",
			Name:      "evaluation_ticks_total",
			Help:      "Total completed evaluation ticks",
		},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "atrwac",
			Name:      "evaluation_tick_seconds",
			Help:      "Wall time of one evaluation tick",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
		},
	)

	liveAgents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atrwac",
			Name:      "live_agents",
			Help:      "Number of live (unpruned) agents",
		},
	)

	championCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atrwac",
			Name:      "champions",
			Help:      "Number of agents currently flagged as champions",
		},
	)

	prunedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atrwac",
			Name:      "pruned_total",
			Help:      "Total pruned agents",
		},
		[]string{"phase"},
	)

	probeErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "atrwac",
			Name:      "probe_errors_total",
			Help:      "Total per-agent metrics probe failures",
		},
	)

	computeSavings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "atrwac",
			Name:      "compute_savings_pct",
			Help:      "Reclaimed compute as percentage of initial fleet",
		},
	)
)

// TickCompleted records a finished evaluation tick and its duration in seconds.
func TickCompleted(seconds float64) {
	ticksTotal.Inc()
	tickDuration.Observe(seconds)
}

// SetLiveAgents updates the live agent gauge.
func SetLiveAgents(n int) {
	liveAgents.Set(float64(n))
}

// SetChampions updates the champion gauge.
func SetChampions(n int) {
	championCount.Set(float64(n))
}

// AgentPruned records one eviction in the given phase.
func AgentPruned(phase string) {
	prunedTotal.WithLabelValues(phase).Inc()
}

// ProbeError records one per-agent probe failure.
func ProbeError() {
	probeErrorsTotal.Inc()
}

// SetComputeSavings updates the compute savings gauge.
func SetComputeSavings(pct float64) {
	computeSavings.Set(pct)
}
