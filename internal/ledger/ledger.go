// SPDX-License-Identifier: MIT

// Package ledger tracks which agent occupies which compute lane and GPU slot.
// It is the sole source of truth for compute savings. The ledger is not safe
// for concurrent use on its own; the engine serialises all access.
package ledger

import (
	"fmt"
	"sort"
)

// AgentsPerGPU is the deterministic packing rule applied at engine start:
// the i-th registered agent receives lane i and GPU slot i/AgentsPerGPU.
// The rule is implementation-visible only; callers must not depend on it.
const AgentsPerGPU = 5

// Assignment pins an agent to a lane and a GPU slot.
type Assignment struct {
	GPU  int `json:"gpu_id"`
	Lane int `json:"lane_id"`
}

// Ledger owns the lane and GPU occupancy maps.
type Ledger struct {
	gpuOccupants map[int]map[string]struct{}
	laneToAgent  map[int]string
	assignments  map[string]Assignment
	totalKnown   int
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		gpuOccupants: make(map[int]map[string]struct{}),
		laneToAgent:  make(map[int]string),
		assignments:  make(map[string]Assignment),
	}
}

// Assign records an agent on a lane and GPU slot. Intended for engine init
// only; it fails if the agent, the lane, or an identical registration is
// already present.
func (l *Ledger) Assign(agentID string, lane, gpu int) error {
	if lane < 0 || gpu < 0 {
		return fmt.Errorf("negative resource id (lane=%d, gpu=%d)", lane, gpu)
	}
	if _, exists := l.assignments[agentID]; exists {
		return fmt.Errorf("agent %q already assigned", agentID)
	}
	if owner, exists := l.laneToAgent[lane]; exists {
		return fmt.Errorf("lane %d already occupied by %q", lane, owner)
	}

	l.assignments[agentID] = Assignment{GPU: gpu, Lane: lane}
	l.laneToAgent[lane] = agentID
	if l.gpuOccupants[gpu] == nil {
		l.gpuOccupants[gpu] = make(map[string]struct{})
	}
	l.gpuOccupants[gpu][agentID] = struct{}{}
	l.totalKnown++
	return nil
}

// Release removes an agent from both maps. Idempotent: releasing an unknown
// or already released agent is a no-op. The total known count is unchanged so
// compute savings keep their meaning after pruning.
func (l *Ledger) Release(agentID string) {
	a, ok := l.assignments[agentID]
	if !ok {
		return
	}
	delete(l.assignments, agentID)
	delete(l.laneToAgent, a.Lane)
	if occ := l.gpuOccupants[a.GPU]; occ != nil {
		delete(occ, agentID)
		if len(occ) == 0 {
			delete(l.gpuOccupants, a.GPU)
		}
	}
}

// Assignment returns the current assignment for an agent.
func (l *Ledger) Assignment(agentID string) (Assignment, bool) {
	a, ok := l.assignments[agentID]
	return a, ok
}

// LiveLanes returns the number of occupied lanes.
func (l *Ledger) LiveLanes() int {
	return len(l.laneToAgent)
}

// ActiveGPUs returns the number of GPU slots with at least one occupant.
func (l *Ledger) ActiveGPUs() int {
	return len(l.gpuOccupants)
}

// TotalKnown returns the number of agents ever assigned.
func (l *Ledger) TotalKnown() int {
	return l.totalKnown
}

// SavingsPct reports reclaimed compute as a percentage: 100 * (1 - live/total).
func (l *Ledger) SavingsPct() float64 {
	if l.totalKnown == 0 {
		return 0
	}
	return 100 * (1 - float64(len(l.laneToAgent))/float64(l.totalKnown))
}

// LaneView is one row of the status snapshot.
type LaneView struct {
	Lane    int    `json:"lane_id"`
	GPU     int    `json:"gpu_id"`
	AgentID string `json:"agent_id"`
}

// Snapshot returns a copy of the occupancy ordered by lane id. Used only by
// status snapshots; mutating the result has no effect on the ledger.
func (l *Ledger) Snapshot() []LaneView {
	out := make([]LaneView, 0, len(l.laneToAgent))
	for lane, agentID := range l.laneToAgent {
		out = append(out, LaneView{
			Lane:    lane,
			GPU:     l.assignments[agentID].GPU,
			AgentID: agentID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lane < out[j].Lane })
	return out
}
