// SPDX-License-Identifier: MIT

package engine

import (
	"errors"
	"time"

	"github.com/quantfleet/atrwac/internal/ledger"
	"github.com/quantfleet/atrwac/internal/probe"
)

// Sentinel errors surfaced by the operator-facing entry points.
var (
	ErrNotFound      = errors.New("agent not found")
	ErrAlreadyPruned = errors.New("agent already pruned")
	ErrNotRunning    = errors.New("engine not running")
)

// Phase is the lifecycle phase of the tuning run. Values are lowercase wire
// strings for stable PromQL queries and audit rows.
type Phase string

const (
	PhaseInitialBlast Phase = "initial_blast"
	PhaseFirstPruning Phase = "first_pruning"
	PhaseDeepPruning  Phase = "deep_pruning"
	PhaseOptimalState Phase = "optimal_state"
	PhaseMaintenance  Phase = "maintenance"
)

// String returns the wire representation.
func (p Phase) String() string { return string(p) }

// order gives phases a total order so transitions can never regress.
func (p Phase) order() int {
	switch p {
	case PhaseInitialBlast:
		return 0
	case PhaseFirstPruning:
		return 1
	case PhaseDeepPruning:
		return 2
	case PhaseOptimalState:
		return 3
	case PhaseMaintenance:
		return 4
	default:
		return -1
	}
}

// ScorePoint is one entry of an agent's append-only score history.
type ScorePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}

// AgentScore is the engine's book entry for one agent. It lives for the
// engine's lifetime; pruned agents stay in the map with IsActive=false
// for audit.
type AgentScore struct {
	ID              string             `json:"agent_id"`
	Name            string             `json:"agent_name"`
	Assignment      ledger.Assignment  `json:"resource_assignment"`
	Metrics         probe.MetricRecord `json:"metrics"`
	ComputeUsagePct float64            `json:"compute_usage_pct"`
	FinalScore      float64            `json:"final_score"`
	Rank            int                `json:"rank"`
	IsActive        bool               `json:"is_active"`
	IsChampion      bool               `json:"is_champion"`
	PrunedAt        *time.Time         `json:"pruned_at,omitempty"`
	PrunedReason    string             `json:"pruned_reason,omitempty"`
	ScoreHistory    []ScorePoint       `json:"score_history"`
}

// snapshot returns a deep copy safe to hand outside the engine.
func (a *AgentScore) snapshot() AgentScore {
	out := *a
	if a.PrunedAt != nil {
		ts := *a.PrunedAt
		out.PrunedAt = &ts
	}
	out.ScoreHistory = make([]ScorePoint, len(a.ScoreHistory))
	copy(out.ScoreHistory, a.ScoreHistory)
	return out
}
