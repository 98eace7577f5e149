// SPDX-License-Identifier: MIT

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfleet/atrwac/internal/config"
)

func TestClassifyPhase(t *testing.T) {
	p := config.Default().Pruning // 30 / 60 / 90

	tests := []struct {
		days int
		want Phase
	}{
		{0, PhaseInitialBlast},
		{29, PhaseInitialBlast},
		{30, PhaseFirstPruning},
		{59, PhaseFirstPruning},
		{60, PhaseDeepPruning},
		{89, PhaseDeepPruning},
		{90, PhaseOptimalState},
		{400, PhaseOptimalState},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyPhase(tt.days, p), "day %d", tt.days)
	}
}

func TestDaysUntilNextPhase(t *testing.T) {
	p := config.Default().Pruning

	assert.Equal(t, 30, daysUntilNextPhase(0, PhaseInitialBlast, p))
	assert.Equal(t, 1, daysUntilNextPhase(29, PhaseInitialBlast, p))
	assert.Equal(t, 30, daysUntilNextPhase(30, PhaseFirstPruning, p))
	assert.Equal(t, 0, daysUntilNextPhase(90, PhaseOptimalState, p))
	assert.Equal(t, 0, daysUntilNextPhase(120, PhaseMaintenance, p))

	// Phase ahead of the schedule clamps to zero instead of going negative.
	assert.Equal(t, 0, daysUntilNextPhase(70, PhaseFirstPruning, p))
}

func TestKeepCount(t *testing.T) {
	p := config.Default().Pruning // fracs 0.5 / 0.25, keep 3

	assert.Equal(t, 10, keepCount(PhaseInitialBlast, 10, p))
	assert.Equal(t, 5, keepCount(PhaseFirstPruning, 10, p))
	assert.Equal(t, 3, keepCount(PhaseFirstPruning, 4, p)) // floor(2) below champion floor
	assert.Equal(t, 3, keepCount(PhaseDeepPruning, 12, p))
	assert.Equal(t, 5, keepCount(PhaseDeepPruning, 20, p))
	assert.Equal(t, 3, keepCount(PhaseOptimalState, 8, p))
	assert.Equal(t, 3, keepCount(PhaseMaintenance, 3, p))
}

func TestPhaseOrder(t *testing.T) {
	assert.Less(t, PhaseInitialBlast.order(), PhaseFirstPruning.order())
	assert.Less(t, PhaseFirstPruning.order(), PhaseDeepPruning.order())
	assert.Less(t, PhaseDeepPruning.order(), PhaseOptimalState.order())
	assert.Less(t, PhaseOptimalState.order(), PhaseMaintenance.order())
	assert.Equal(t, -1, Phase("bogus").order())
}
