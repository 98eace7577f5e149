// SPDX-License-Identifier: MIT

// Package probe defines the read-only contract between the tuning engine and
// the trading agents it observes. The engine never constructs agents; it only
// pulls metric records through the interfaces declared here.
package probe

import (
	"context"
	"math"
)

// MetricRecord is the fixed set of performance metrics an agent reports.
// Missing metrics map to zero in the handle, not in the engine.
type MetricRecord struct {
	TotalProfit             float64 `json:"total_profit"`
	ProfitPct               float64 `json:"profit_pct"`
	WinRate                 float64 `json:"win_rate"`
	TotalTrades             int     `json:"total_trades"`
	AvgTradeDurationMinutes float64 `json:"avg_trade_duration_minutes"`
	MaxDrawdown             float64 `json:"max_drawdown"`
	SharpeRatio             float64 `json:"sharpe_ratio"`
	SentimentAccuracy       float64 `json:"sentiment_accuracy"`
}

// Sanitized returns a copy with NaN and Infinity fields clamped to zero.
// The scorer must never see a non-finite input.
func (r MetricRecord) Sanitized() MetricRecord {
	r.TotalProfit = finite(r.TotalProfit)
	r.ProfitPct = finite(r.ProfitPct)
	r.WinRate = finite(r.WinRate)
	r.AvgTradeDurationMinutes = finite(r.AvgTradeDurationMinutes)
	r.MaxDrawdown = finite(r.MaxDrawdown)
	r.SharpeRatio = finite(r.SharpeRatio)
	r.SentimentAccuracy = finite(r.SentimentAccuracy)
	if r.TotalTrades < 0 {
		r.TotalTrades = 0
	}
	return r
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// AgentHandle is the capability interface every live agent exposes.
type AgentHandle interface {
	ID() string
	Name() string
	Metrics(ctx context.Context) (MetricRecord, error)
}

// UsageReporter is an optional capability: handles that know their compute
// footprint report it as a percentage in [0, 100]. Handles without it
// contribute zero resource penalty.
type UsageReporter interface {
	ComputeUsagePct() float64
}

// AgentSource lists the fleet. Called once at engine start and once per tick.
type AgentSource func(ctx context.Context) ([]AgentHandle, error)

// StopFunc halts a single agent. Invoked at most once per agent during eviction.
type StopFunc func(ctx context.Context, id string) (bool, error)

// DeleteFunc removes a single agent. Never invoked by the evaluation loop;
// reserved for the operator-driven manual prune path.
type DeleteFunc func(ctx context.Context, id string) (bool, error)

// UsagePct extracts the optional compute usage from a handle, clamped to [0, 100].
func UsagePct(h AgentHandle) float64 {
	reporter, ok := h.(UsageReporter)
	if !ok {
		return 0
	}
	pct := finite(reporter.ComputeUsagePct())
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
