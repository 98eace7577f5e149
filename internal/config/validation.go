// SPDX-License-Identifier: MIT

package config

import (
	"time"

	"github.com/quantfleet/atrwac/internal/validate"
)

// Validate checks an Engine configuration using the centralized validation package.
// A non-nil error is a validate.ValidationError carrying per-field reasons.
func Validate(cfg Engine) error {
	v := validate.New()

	if !cfg.Target.IsValid() {
		v.AddError("Target", "unknown optimisation target", string(cfg.Target))
	}

	v.Weight("Weights.Profit", cfg.Weights.Profit)
	v.Weight("Weights.WinRate", cfg.Weights.WinRate)
	v.Weight("Weights.Efficiency", cfg.Weights.Efficiency)
	v.Weight("Weights.ResourcePenalty", cfg.Weights.ResourcePenalty)
	v.Weight("Weights.Speed", cfg.Weights.Speed)
	v.Weight("Weights.Sentiment", cfg.Weights.Sentiment)
	v.Weight("Weights.Drawdown", cfg.Weights.Drawdown)

	v.Positive("Pruning.FirstPruningDays", cfg.Pruning.FirstPruningDays)
	v.Positive("Pruning.DeepPruningDays", cfg.Pruning.DeepPruningDays)
	v.Positive("Pruning.OptimalStateDays", cfg.Pruning.OptimalStateDays)
	v.Increasing("Pruning",
		cfg.Pruning.FirstPruningDays,
		cfg.Pruning.DeepPruningDays,
		cfg.Pruning.OptimalStateDays)

	v.Fraction("Pruning.FirstKeepFrac", cfg.Pruning.FirstKeepFrac)
	v.Fraction("Pruning.DeepKeepFrac", cfg.Pruning.DeepKeepFrac)
	v.Positive("Pruning.OptimalKeepCount", cfg.Pruning.OptimalKeepCount)
	v.NonNegative("Pruning.MinTradesForEval", cfg.Pruning.MinTradesForEval)
	v.NonNegative("Pruning.MinDaysForEval", cfg.Pruning.MinDaysForEval)

	v.MinDuration("EvaluationInterval", cfg.EvaluationInterval, time.Second)

	return v.Err()
}
