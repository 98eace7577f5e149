// SPDX-License-Identifier: MIT

// Package config provides configuration management for the atrwac engine.
package config

import (
	"fmt"
	"time"
)

// Target identifies an optimisation target. The eight identifiers are exact
// wire strings and are matched case-sensitively.
type Target string

const (
	TargetMaxProfit        Target = "max_profit"
	TargetMaxGrowthPct     Target = "max_growth_pct"
	TargetFastestSpeed     Target = "fastest_speed"
	TargetMaxWinRate       Target = "max_win_rate"
	TargetMinDrawdown      Target = "min_drawdown"
	TargetBestSharpe       Target = "best_sharpe"
	TargetSentimentAligned Target = "sentiment_aligned"
	TargetCustom           Target = "custom"
)

// IsValid reports whether the target is one of the eight known identifiers.
func (t Target) IsValid() bool {
	switch t {
	case TargetMaxProfit, TargetMaxGrowthPct, TargetFastestSpeed, TargetMaxWinRate,
		TargetMinDrawdown, TargetBestSharpe, TargetSentimentAligned, TargetCustom:
		return true
	default:
		return false
	}
}

// String returns the wire representation.
func (t Target) String() string { return string(t) }

// ParseTarget parses a wire string into a Target. Matching is case-sensitive.
func ParseTarget(s string) (Target, error) {
	t := Target(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown optimisation target %q", s)
	}
	return t, nil
}

// Weights are the multipliers applied to each raw score component.
// No normalisation is enforced; each must be non-negative and finite.
type Weights struct {
	Profit          float64 `yaml:"profit" json:"profit"`
	WinRate         float64 `yaml:"win_rate" json:"win_rate"`
	Efficiency      float64 `yaml:"efficiency" json:"efficiency"`
	ResourcePenalty float64 `yaml:"resource_penalty" json:"resource_penalty"`
	Speed           float64 `yaml:"speed" json:"speed"`
	Sentiment       float64 `yaml:"sentiment" json:"sentiment"`
	Drawdown        float64 `yaml:"drawdown" json:"drawdown"`
}

// PruningPolicy controls when and how aggressively the fleet is trimmed.
// Day thresholds are measured from engine start and must be strictly increasing.
type PruningPolicy struct {
	FirstPruningDays int     `yaml:"first_pruning_days" json:"first_pruning_days"`
	DeepPruningDays  int     `yaml:"deep_pruning_days" json:"deep_pruning_days"`
	OptimalStateDays int     `yaml:"optimal_state_days" json:"optimal_state_days"`
	FirstKeepFrac    float64 `yaml:"first_keep_frac" json:"first_keep_frac"`
	DeepKeepFrac     float64 `yaml:"deep_keep_frac" json:"deep_keep_frac"`
	OptimalKeepCount int     `yaml:"optimal_keep_count" json:"optimal_keep_count"`
	MinTradesForEval int     `yaml:"min_trades_for_eval" json:"min_trades_for_eval"`
	MinDaysForEval   int     `yaml:"min_days_for_eval" json:"min_days_for_eval"`
}

// Engine is the effective engine configuration.
type Engine struct {
	Enabled            bool          `yaml:"enabled" json:"enabled"`
	Target             Target        `yaml:"target" json:"target"`
	Weights            Weights       `yaml:"weights" json:"weights"`
	Pruning            PruningPolicy `yaml:"pruning" json:"pruning"`
	EvaluationInterval time.Duration `yaml:"-" json:"evaluation_interval_seconds"`
	AutoPrune          bool          `yaml:"auto_prune" json:"auto_prune"`
}

// Default returns the configuration the engine boots with when no file or
// environment overrides are supplied.
func Default() Engine {
	weights, _ := PresetWeights(TargetMaxProfit)
	return Engine{
		Enabled: true,
		Target:  TargetMaxProfit,
		Weights: weights,
		Pruning: PruningPolicy{
			FirstPruningDays: 30,
			DeepPruningDays:  60,
			OptimalStateDays: 90,
			FirstKeepFrac:    0.5,
			DeepKeepFrac:     0.25,
			OptimalKeepCount: 3,
			MinTradesForEval: 10,
			MinDaysForEval:   0,
		},
		EvaluationInterval: 24 * time.Hour,
		AutoPrune:          true,
	}
}
