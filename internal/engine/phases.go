// SPDX-License-Identifier: MIT

package engine

import "github.com/quantfleet/atrwac/internal/config"

// classifyPhase maps whole elapsed days since start onto the time-driven
// phases. MAINTENANCE is never classified from time; the pruning executor
// enters it once the live count reaches the optimal keep count.
func classifyPhase(elapsedDays int, p config.PruningPolicy) Phase {
	switch {
	case elapsedDays < p.FirstPruningDays:
		return PhaseInitialBlast
	case elapsedDays < p.DeepPruningDays:
		return PhaseFirstPruning
	case elapsedDays < p.OptimalStateDays:
		return PhaseDeepPruning
	default:
		return PhaseOptimalState
	}
}

// daysUntilNextPhase reports the whole days left before the next time-driven
// phase boundary, clamped to zero when the engine has already advanced past
// the boundary the classifier would imply.
func daysUntilNextPhase(elapsedDays int, phase Phase, p config.PruningPolicy) int {
	var boundary int
	switch phase {
	case PhaseInitialBlast:
		boundary = p.FirstPruningDays
	case PhaseFirstPruning:
		boundary = p.DeepPruningDays
	case PhaseDeepPruning:
		boundary = p.OptimalStateDays
	default:
		// OPTIMAL_STATE and MAINTENANCE have no next boundary.
		return 0
	}
	if left := boundary - elapsedDays; left > 0 {
		return left
	}
	return 0
}
