// SPDX-License-Identifier: MIT

package config

import "time"

// Update is a partial configuration document as accepted by the operator API.
// Nil fields leave the effective value untouched.
type Update struct {
	Enabled                   *bool          `json:"enabled,omitempty"`
	Target                    *string        `json:"target,omitempty"`
	Weights                   *WeightsUpdate `json:"weights,omitempty"`
	Pruning                   *PruningUpdate `json:"pruning,omitempty"`
	EvaluationIntervalSeconds *int           `json:"evaluation_interval_seconds,omitempty"`
	AutoPrune                 *bool          `json:"auto_prune,omitempty"`
}

// WeightsUpdate overrides individual weights.
type WeightsUpdate struct {
	Profit          *float64 `json:"profit,omitempty"`
	WinRate         *float64 `json:"win_rate,omitempty"`
	Efficiency      *float64 `json:"efficiency,omitempty"`
	ResourcePenalty *float64 `json:"resource_penalty,omitempty"`
	Speed           *float64 `json:"speed,omitempty"`
	Sentiment       *float64 `json:"sentiment,omitempty"`
	Drawdown        *float64 `json:"drawdown,omitempty"`
}

// PruningUpdate overrides individual pruning policy fields.
type PruningUpdate struct {
	FirstPruningDays *int     `json:"first_pruning_days,omitempty"`
	DeepPruningDays  *int     `json:"deep_pruning_days,omitempty"`
	OptimalStateDays *int     `json:"optimal_state_days,omitempty"`
	FirstKeepFrac    *float64 `json:"first_keep_frac,omitempty"`
	DeepKeepFrac     *float64 `json:"deep_keep_frac,omitempty"`
	OptimalKeepCount *int     `json:"optimal_keep_count,omitempty"`
	MinTradesForEval *int     `json:"min_trades_for_eval,omitempty"`
	MinDaysForEval   *int     `json:"min_days_for_eval,omitempty"`
}

// Apply merges an update onto cfg and validates the result. On error the
// returned Engine is the zero value and cfg is untouched, so a failed update
// never leaks a partially merged configuration.
//
// Selecting a non-custom target re-seeds the weights from its preset table;
// explicit weight overrides in the same document win over the preset.
func Apply(cfg Engine, u Update) (Engine, error) {
	next := cfg

	if u.Target != nil {
		target, err := ParseTarget(*u.Target)
		if err != nil {
			return Engine{}, err
		}
		next.Target = target
		if preset, ok := PresetWeights(target); ok {
			next.Weights = preset
		}
	}

	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}
	if u.AutoPrune != nil {
		next.AutoPrune = *u.AutoPrune
	}
	if u.EvaluationIntervalSeconds != nil {
		next.EvaluationInterval = time.Duration(*u.EvaluationIntervalSeconds) * time.Second
	}

	if u.Weights != nil {
		w := &next.Weights
		setFloat(&w.Profit, u.Weights.Profit)
		setFloat(&w.WinRate, u.Weights.WinRate)
		setFloat(&w.Efficiency, u.Weights.Efficiency)
		setFloat(&w.ResourcePenalty, u.Weights.ResourcePenalty)
		setFloat(&w.Speed, u.Weights.Speed)
		setFloat(&w.Sentiment, u.Weights.Sentiment)
		setFloat(&w.Drawdown, u.Weights.Drawdown)
	}

	if u.Pruning != nil {
		p := &next.Pruning
		setInt(&p.FirstPruningDays, u.Pruning.FirstPruningDays)
		setInt(&p.DeepPruningDays, u.Pruning.DeepPruningDays)
		setInt(&p.OptimalStateDays, u.Pruning.OptimalStateDays)
		setFloat(&p.FirstKeepFrac, u.Pruning.FirstKeepFrac)
		setFloat(&p.DeepKeepFrac, u.Pruning.DeepKeepFrac)
		setInt(&p.OptimalKeepCount, u.Pruning.OptimalKeepCount)
		setInt(&p.MinTradesForEval, u.Pruning.MinTradesForEval)
		setInt(&p.MinDaysForEval, u.Pruning.MinDaysForEval)
	}

	if err := Validate(next); err != nil {
		return Engine{}, err
	}
	return next, nil
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
