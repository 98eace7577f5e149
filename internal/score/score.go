// SPDX-License-Identifier: MIT

// Package score computes the weighted multi-objective score that ranks
// trading agents. Each raw component is bounded to roughly [0, 1000] so
// weight magnitudes are directly comparable across objectives.
package score

import (
	"math"

	"github.com/quantfleet/atrwac/internal/config"
	"github.com/quantfleet/atrwac/internal/probe"
)

// Epsilon is the score distance below which two agents are considered tied.
const Epsilon = 1e-9

// profitCeiling is the absolute profit that saturates the profit component.
const profitCeiling = 10_000.0

// Compute returns the final score for a metric record under the given
// weights. usagePct is the agent's compute usage in [0, 100]. The result is
// clamped at zero so penalty terms cannot invert ordering at the tail.
func Compute(rec probe.MetricRecord, usagePct float64, w config.Weights) float64 {
	rec = rec.Sanitized()

	var profitRaw float64
	if rec.TotalProfit > 0 {
		profitRaw = clamp01(rec.TotalProfit/profitCeiling) * 1000
	}

	winRaw := rec.WinRate * 1000
	efficiencyRaw := clamp01((rec.SharpeRatio+3)/6) * 1000
	resourceRaw := usagePct * 10

	var speedRaw float64
	if w.Speed > 0 {
		speedRaw = math.Min(1000, 1000/math.Max(rec.AvgTradeDurationMinutes, 1))
	}

	var sentimentRaw float64
	if w.Sentiment > 0 {
		sentimentRaw = rec.SentimentAccuracy * 1000
	}

	var drawdownRaw float64
	if w.Drawdown > 0 {
		drawdownRaw = rec.MaxDrawdown * 1000
	}

	s := w.Profit*profitRaw +
		w.WinRate*winRaw +
		w.Efficiency*efficiencyRaw +
		w.Speed*speedRaw +
		w.Sentiment*sentimentRaw -
		w.ResourcePenalty*resourceRaw -
		w.Drawdown*drawdownRaw

	return math.Max(0, s)
}

// Entry is the minimal view of an agent the comparator needs.
type Entry struct {
	Score       float64
	TotalProfit float64
	Lane        int
}

// Better reports whether a ranks strictly before b. Ordering is by score
// descending; scores within Epsilon fall back to total profit descending,
// then ascending lane id for a stable, deterministic order.
func Better(a, b Entry) bool {
	if math.Abs(a.Score-b.Score) > Epsilon {
		return a.Score > b.Score
	}
	if a.TotalProfit != b.TotalProfit {
		return a.TotalProfit > b.TotalProfit
	}
	return a.Lane < b.Lane
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
