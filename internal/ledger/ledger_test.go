// SPDX-License-Identifier: MIT

package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignAndTotals(t *testing.T) {
	l := New()
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("bot-%d", i)
		require.NoError(t, l.Assign(id, i, i/AgentsPerGPU))
	}

	assert.Equal(t, 10, l.LiveLanes())
	assert.Equal(t, 2, l.ActiveGPUs())
	assert.Equal(t, 10, l.TotalKnown())
	assert.Equal(t, 0.0, l.SavingsPct())
}

func TestAssignConflicts(t *testing.T) {
	l := New()
	require.NoError(t, l.Assign("a", 0, 0))

	assert.Error(t, l.Assign("a", 1, 0), "duplicate agent")
	assert.Error(t, l.Assign("b", 0, 0), "occupied lane")
	assert.Error(t, l.Assign("c", -1, 0), "negative lane")
}

func TestReleaseIdempotent(t *testing.T) {
	l := New()
	require.NoError(t, l.Assign("a", 0, 0))
	require.NoError(t, l.Assign("b", 1, 0))

	l.Release("a")
	l.Release("a") // no-op
	l.Release("unknown")

	assert.Equal(t, 1, l.LiveLanes())
	assert.Equal(t, 1, l.ActiveGPUs())
	assert.Equal(t, 2, l.TotalKnown())

	_, ok := l.Assignment("a")
	assert.False(t, ok)
}

func TestGPUSlotDrainsWhenEmpty(t *testing.T) {
	l := New()
	require.NoError(t, l.Assign("a", 0, 0))
	require.NoError(t, l.Assign("b", 5, 1))

	l.Release("b")
	assert.Equal(t, 1, l.ActiveGPUs())
}

func TestSavingsPct(t *testing.T) {
	l := New()
	assert.Equal(t, 0.0, l.SavingsPct(), "empty ledger")

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Assign(fmt.Sprintf("bot-%d", i), i, i/AgentsPerGPU))
	}
	for i := 0; i < 5; i++ {
		l.Release(fmt.Sprintf("bot-%d", i))
	}
	assert.InDelta(t, 50.0, l.SavingsPct(), 1e-12)
}

func TestSnapshotOrderedAndDetached(t *testing.T) {
	l := New()
	require.NoError(t, l.Assign("b", 3, 0))
	require.NoError(t, l.Assign("a", 1, 0))

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 1, snap[0].Lane)
	assert.Equal(t, "a", snap[0].AgentID)
	assert.Equal(t, 3, snap[1].Lane)

	snap[0].AgentID = "mutated"
	fresh := l.Snapshot()
	assert.Equal(t, "a", fresh[0].AgentID)
}
