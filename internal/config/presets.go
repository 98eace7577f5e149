// SPDX-License-Identifier: MIT

package config

// presetWeights maps each optimisation target to its seed weights.
// The table is data-only; targets beyond the lookup carry no behaviour.
// "custom" has no preset: operator-supplied weights apply unchanged.
var presetWeights = map[Target]Weights{
	TargetMaxProfit: {
		Profit:          0.50,
		WinRate:         0.25,
		Efficiency:      0.15,
		ResourcePenalty: 0.10,
	},
	TargetMaxGrowthPct: {
		Profit:          0.60,
		WinRate:         0.20,
		Efficiency:      0.10,
		ResourcePenalty: 0.10,
	},
	TargetFastestSpeed: {
		Profit:          0.25,
		WinRate:         0.20,
		Efficiency:      0.15,
		ResourcePenalty: 0.10,
		Speed:           0.30,
	},
	TargetMaxWinRate: {
		Profit:          0.20,
		WinRate:         0.50,
		Efficiency:      0.20,
		ResourcePenalty: 0.10,
	},
	TargetMinDrawdown: {
		Profit:          0.30,
		WinRate:         0.20,
		Efficiency:      0.10,
		ResourcePenalty: 0.10,
		Drawdown:        0.30,
	},
	TargetBestSharpe: {
		Profit:          0.30,
		WinRate:         0.20,
		Efficiency:      0.30,
		ResourcePenalty: 0.10,
		Drawdown:        0.10,
	},
	TargetSentimentAligned: {
		Profit:          0.25,
		WinRate:         0.20,
		Efficiency:      0.10,
		ResourcePenalty: 0.10,
		Sentiment:       0.35,
	},
}

// PresetWeights returns the seed weights for a target. The second return is
// false for "custom" and unknown targets.
func PresetWeights(t Target) (Weights, bool) {
	w, ok := presetWeights[t]
	return w, ok
}
