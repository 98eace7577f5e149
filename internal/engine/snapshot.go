// SPDX-License-Identifier: MIT

package engine

import (
	"time"

	"github.com/quantfleet/atrwac/internal/audit"
	"github.com/quantfleet/atrwac/internal/config"
	"github.com/quantfleet/atrwac/internal/ledger"
)

// StatusSnapshot is the operator-facing view of the engine at one instant.
type StatusSnapshot struct {
	Running            bool          `json:"running"`
	Phase              Phase         `json:"phase"`
	Target             config.Target `json:"target"`
	LiveAgents         int           `json:"live_agents"`
	TotalAgents        int           `json:"total_agents"`
	PrunedAgents       int           `json:"pruned_agents"`
	Champions          []string      `json:"champions"`
	ComputeSavingsPct  float64       `json:"compute_savings_pct"`
	DaysElapsed        int           `json:"days_elapsed"`
	DaysUntilNextPhase int           `json:"days_until_next_phase"`
	EvaluationTicks    uint64        `json:"evaluation_ticks"`
	LastEvaluation     *time.Time    `json:"last_evaluation,omitempty"`
	AutoPrune          bool          `json:"auto_prune"`
}

// ChampionInfo is one entry of the champion board.
type ChampionInfo struct {
	AgentID     string  `json:"agent_id"`
	AgentName   string  `json:"agent_name"`
	Rank        int     `json:"rank"`
	FinalScore  float64 `json:"final_score"`
	TotalProfit float64 `json:"total_profit"`
	WinRate     float64 `json:"win_rate"`
}

// ResourceSnapshot is the occupancy view of the compute ledger.
type ResourceSnapshot struct {
	LiveLanes         int               `json:"live_lanes"`
	ActiveGPUs        int               `json:"active_gpus"`
	TotalKnown        int               `json:"total_known"`
	ComputeSavingsPct float64           `json:"compute_savings_pct"`
	Lanes             []ledger.LaneView `json:"lanes"`
}

// Status returns a copied status snapshot.
func (e *Engine) Status() StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() StatusSnapshot {
	elapsedDays := 0
	if !e.startedAt.IsZero() {
		elapsedDays = int(e.clock().Sub(e.startedAt).Hours() / 24)
	}

	s := StatusSnapshot{
		Running:            e.running,
		Phase:              e.phase,
		Target:             e.cfg.Target,
		LiveAgents:         e.liveCount(),
		TotalAgents:        len(e.agents),
		Champions:          append([]string(nil), e.champions...),
		ComputeSavingsPct:  e.ledger.SavingsPct(),
		DaysElapsed:        elapsedDays,
		DaysUntilNextPhase: daysUntilNextPhase(elapsedDays, e.phase, e.cfg.Pruning),
		EvaluationTicks:    e.ticks,
		AutoPrune:          e.cfg.AutoPrune,
	}
	s.PrunedAgents = s.TotalAgents - s.LiveAgents
	if !e.lastTick.IsZero() {
		ts := e.lastTick
		s.LastEvaluation = &ts
	}
	return s
}

// Rankings returns deep copies of the live agents in rank order.
func (e *Engine) Rankings() []AgentScore {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rankingsLocked()
}

func (e *Engine) rankingsLocked() []AgentScore {
	out := make([]AgentScore, 0, len(e.ranked))
	for _, id := range e.ranked {
		out = append(out, e.agents[id].snapshot())
	}
	return out
}

// Agent returns a deep copy of one agent's book entry, live or pruned.
func (e *Engine) Agent(agentID string) (AgentScore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.agents[agentID]
	if !ok {
		return AgentScore{}, ErrNotFound
	}
	return a.snapshot(), nil
}

// Champions returns the current champion board in rank order.
func (e *Engine) Champions() []ChampionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ChampionInfo, 0, len(e.champions))
	for _, id := range e.champions {
		a := e.agents[id]
		out = append(out, ChampionInfo{
			AgentID:     a.ID,
			AgentName:   a.Name,
			Rank:        a.Rank,
			FinalScore:  a.FinalScore,
			TotalProfit: a.Metrics.TotalProfit,
			WinRate:     a.Metrics.WinRate,
		})
	}
	return out
}

// PruningHistory returns a copy of the in-memory audit trail, oldest first.
func (e *Engine) PruningHistory() []audit.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]audit.Record(nil), e.history...)
}

// Resources returns the compute ledger occupancy.
func (e *Engine) Resources() ResourceSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ResourceSnapshot{
		LiveLanes:         e.ledger.LiveLanes(),
		ActiveGPUs:        e.ledger.ActiveGPUs(),
		TotalKnown:        e.ledger.TotalKnown(),
		ComputeSavingsPct: e.ledger.SavingsPct(),
		Lanes:             e.ledger.Snapshot(),
	}
}
