// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantfleet/atrwac/internal/audit"
	"github.com/quantfleet/atrwac/internal/config"
	xglog "github.com/quantfleet/atrwac/internal/log"
	"github.com/quantfleet/atrwac/internal/metrics"
)

// keepCount returns how many live agents survive a pruning pass in the
// given phase. Fractional keeps floor, and never go below the champion
// count. INITIAL_BLAST keeps everyone.
func keepCount(phase Phase, live int, p config.PruningPolicy) int {
	switch phase {
	case PhaseFirstPruning:
		return maxInt(p.OptimalKeepCount, int(float64(live)*p.FirstKeepFrac))
	case PhaseDeepPruning:
		return maxInt(p.OptimalKeepCount, int(float64(live)*p.DeepKeepFrac))
	case PhaseOptimalState, PhaseMaintenance:
		return p.OptimalKeepCount
	default:
		return live
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// pruneLocked evicts the ranked tail down to the phase's keep count.
// Agents below the minimum trade count are protected: they have not
// produced enough signal to be judged. Eviction order is ascending
// score so the audit trail reads worst-first. Callers hold the lock.
func (e *Engine) pruneLocked(now time.Time) ([]audit.Record, []string) {
	live := len(e.ranked)
	keep := keepCount(e.phase, live, e.cfg.Pruning)
	if live <= keep {
		return nil, nil
	}

	victims := make([]audit.Record, 0, live-keep)
	stopIDs := make([]string, 0, live-keep)
	evicted := make(map[string]struct{}, live-keep)

	for i := live - 1; i >= keep; i-- {
		id := e.ranked[i]
		a := e.agents[id]
		if a.Metrics.TotalTrades < e.cfg.Pruning.MinTradesForEval {
			e.logger.Debug().
				Str(xglog.FieldAgentID, id).
				Int("trades", a.Metrics.TotalTrades).
				Str("event", "engine.prune_protected").
				Msg("agent below minimum trade count, skipping eviction")
			continue
		}

		rec := audit.Record{
			ID:         uuid.NewString(),
			Timestamp:  now,
			AgentID:    id,
			AgentName:  a.Name,
			Reason:     fmt.Sprintf("Below threshold in %s phase (rank %d/%d)", e.phase, a.Rank, live),
			FinalScore: a.FinalScore,
			Rank:       a.Rank,
			Phase:      string(e.phase),
		}

		a.IsActive = false
		a.IsChampion = false
		ts := now
		a.PrunedAt = &ts
		a.PrunedReason = rec.Reason
		e.ledger.Release(id)

		e.history = append(e.history, rec)
		e.auditLog.Pruned(audit.EventAgentPruned, rec)

		victims = append(victims, rec)
		stopIDs = append(stopIDs, id)
		evicted[id] = struct{}{}
	}

	if len(evicted) > 0 {
		survivors := e.ranked[:0]
		for _, id := range e.ranked {
			if _, gone := evicted[id]; !gone {
				survivors = append(survivors, id)
			}
		}
		e.ranked = survivors
		for i, id := range e.ranked {
			e.agents[id].Rank = i + 1
		}
	}

	return victims, stopIDs
}

// ManualPrune evicts a single agent on operator request. Unlike the
// scheduled path it invokes the delete callback, removing the agent from
// the upstream fleet entirely. The audit row and ledger release commit
// before the callback runs.
func (e *Engine) ManualPrune(ctx context.Context, agentID, reason string) (audit.Record, error) {
	if reason == "" {
		reason = "Manually pruned by operator"
	}

	e.mu.Lock()
	a, ok := e.agents[agentID]
	if !ok {
		e.mu.Unlock()
		return audit.Record{}, ErrNotFound
	}
	if !a.IsActive {
		e.mu.Unlock()
		return audit.Record{}, ErrAlreadyPruned
	}

	now := e.clock()
	rec := audit.Record{
		ID:         uuid.NewString(),
		Timestamp:  now,
		AgentID:    agentID,
		AgentName:  a.Name,
		Reason:     reason,
		FinalScore: a.FinalScore,
		Rank:       a.Rank,
		Phase:      string(e.phase),
	}

	a.IsActive = false
	a.IsChampion = false
	ts := now
	a.PrunedAt = &ts
	a.PrunedReason = reason
	e.ledger.Release(agentID)

	survivors := e.ranked[:0]
	for _, id := range e.ranked {
		if id != agentID {
			survivors = append(survivors, id)
		}
	}
	e.ranked = survivors
	for i, id := range e.ranked {
		e.agents[id].Rank = i + 1
	}
	e.flagChampionsLocked()

	e.history = append(e.history, rec)
	e.auditLog.Pruned(audit.EventManualPrune, rec)

	live := e.liveCount()
	metrics.SetLiveAgents(live)
	metrics.SetChampions(len(e.champions))
	metrics.SetComputeSavings(e.ledger.SavingsPct())
	metrics.AgentPruned(string(e.phase))
	e.mu.Unlock()

	if e.deleteAgent != nil {
		if _, err := e.deleteAgent(ctx, agentID); err != nil {
			e.logger.Error().
				Err(err).
				Str(xglog.FieldAgentID, agentID).
				Str("event", "engine.delete_agent_failed").
				Msg("delete callback failed for manually pruned agent")
		}
	}
	if e.recorder != nil {
		if err := e.recorder.Append(rec); err != nil {
			e.logger.Warn().Err(err).Str("event", "audit.persist_failed").Msg("audit sink append failed")
		}
	}

	return rec, nil
}
