// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfleet/atrwac/internal/audit"
	xglog "github.com/quantfleet/atrwac/internal/log"
	"github.com/quantfleet/atrwac/internal/metrics"
	"github.com/quantfleet/atrwac/internal/probe"
	"github.com/quantfleet/atrwac/internal/score"
)

// tickErrorBackoff is how long the loop sleeps after a failed tick before
// retrying. Shorter than the evaluation interval so a transient source
// outage does not cost a full tuning day.
const tickErrorBackoff = time.Minute

// run is the evaluation loop. It owns no state; every tick goes through
// evaluate which takes the engine mutex. The timer is re-armed per
// iteration so interval changes from UpdateConfig take effect on the
// next tick.
func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	for {
		wait := e.interval()
		if err := e.sleep(ctx, wait); err != nil {
			return
		}

		if err := e.safeEvaluate(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Error().
				Err(err).
				Str("event", "engine.tick_failed").
				Dur("backoff", tickErrorBackoff).
				Msg("evaluation tick failed")
			if err := e.sleep(ctx, tickErrorBackoff); err != nil {
				return
			}
		}
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// safeEvaluate shields the loop from panics in agent handles or hooks.
// A panicking tick is reported as an error and the loop survives.
func (e *Engine) safeEvaluate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluation panic: %v", r)
		}
	}()
	return e.evaluate(ctx, true)
}

// ForceEvaluation runs one evaluation tick synchronously: probe, score,
// rank and flag champions. The pruning executor never runs on this path,
// even when auto-prune is enabled; evictions happen only on the schedule.
func (e *Engine) ForceEvaluation(ctx context.Context) error {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	return e.evaluate(ctx, false)
}

// tickOutcome carries everything evaluate produced under the lock that
// must be acted on outside it.
type tickOutcome struct {
	victims    []audit.Record
	stopIDs    []string
	samples    []scoreSample
	status     StatusSnapshot
	rankings   []AgentScore
	prunePhase Phase
}

type scoreSample struct {
	agentID string
	ts      time.Time
	score   float64
}

// evaluate performs one tick: probe, score, rank, flag champions and,
// when allowPrune holds, evict the tail. Probing happens outside the
// lock; all bookkeeping happens inside it; stop callbacks and persistence
// hooks run after the lock is released so a slow agent or sink can never
// stall a concurrent snapshot read.
func (e *Engine) evaluate(ctx context.Context, allowPrune bool) error {
	begin := time.Now()

	handles, err := e.source(ctx)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}

	e.mu.Lock()
	active := make([]probe.AgentHandle, 0, len(handles))
	for _, h := range handles {
		if a, ok := e.agents[h.ID()]; ok && a.IsActive {
			active = append(active, h)
		}
	}
	e.mu.Unlock()

	results := e.prober.Collect(ctx, active)
	if err := ctx.Err(); err != nil {
		return err
	}

	out := e.applyTick(results, allowPrune)

	// Eviction order is ascending score; stop callbacks follow the same
	// order after the bookkeeping is already committed. A failing or
	// hanging stop never tears the ledger.
	for _, id := range out.stopIDs {
		if e.stopAgent == nil {
			break
		}
		if _, err := e.stopAgent(ctx, id); err != nil {
			e.logger.Error().
				Err(err).
				Str(xglog.FieldAgentID, id).
				Str("event", "engine.stop_agent_failed").
				Msg("stop callback failed for pruned agent")
		}
	}

	e.persist(out)

	if e.onTick != nil {
		e.onTick(out.status, out.rankings)
	}

	metrics.TickCompleted(time.Since(begin).Seconds())
	return nil
}

// applyTick is the locked core of an evaluation tick.
func (e *Engine) applyTick(results map[string]probe.Result, allowPrune bool) tickOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	elapsedDays := int(now.Sub(e.startedAt).Hours() / 24)
	cfg := e.cfg

	// Phase transitions are advance-only. A shortened schedule can skip
	// phases forward; nothing moves the phase back.
	if next := classifyPhase(elapsedDays, cfg.Pruning); next.order() > e.phase.order() {
		e.transitionLocked(next)
	}

	var samples []scoreSample
	probeErrs := 0
	for id, res := range results {
		a, ok := e.agents[id]
		if !ok || !a.IsActive {
			continue
		}
		if res.Err != nil {
			// Keep the last known record; the agent is scored on stale data.
			probeErrs++
		} else {
			a.Metrics = res.Record
			a.ComputeUsagePct = res.UsagePct
		}
		a.FinalScore = score.Compute(a.Metrics, a.ComputeUsagePct, cfg.Weights)
		a.ScoreHistory = append(a.ScoreHistory, ScorePoint{Timestamp: now, Score: a.FinalScore})
		samples = append(samples, scoreSample{agentID: id, ts: now, score: a.FinalScore})
	}
	for i := 0; i < probeErrs; i++ {
		metrics.ProbeError()
	}

	e.rankLocked()

	out := tickOutcome{samples: samples, prunePhase: e.phase}
	if allowPrune && cfg.AutoPrune && elapsedDays >= cfg.Pruning.MinDaysForEval {
		out.victims, out.stopIDs = e.pruneLocked(now)
	}

	// MAINTENANCE is entered permanently once the fleet is down to the
	// champion count, whatever the time schedule says. This also covers a
	// keep count larger than the fleet: the first evaluation lands here.
	if e.phase != PhaseMaintenance && e.liveCount() <= cfg.Pruning.OptimalKeepCount {
		e.transitionLocked(PhaseMaintenance)
	}

	e.flagChampionsLocked()

	e.lastTick = now
	e.ticks++

	live := e.liveCount()
	metrics.SetLiveAgents(live)
	metrics.SetChampions(len(e.champions))
	metrics.SetComputeSavings(e.ledger.SavingsPct())
	for range out.victims {
		metrics.AgentPruned(string(out.prunePhase))
	}

	e.logger.Info().
		Str("event", "engine.tick").
		Str(xglog.FieldPhase, string(e.phase)).
		Int(xglog.FieldLiveSize, live).
		Int("pruned", len(out.victims)).
		Int("day", elapsedDays).
		Msg("evaluation tick completed")

	out.status = e.statusLocked()
	out.rankings = e.rankingsLocked()
	return out
}

// transitionLocked advances the phase and audits the change.
func (e *Engine) transitionLocked(next Phase) {
	old := e.phase
	e.phase = next
	e.auditLog.PhaseChange(string(old), string(next))
	e.logger.Info().
		Str("event", "engine.phase_change").
		Str(xglog.FieldOldPhase, string(old)).
		Str(xglog.FieldNewPhase, string(next)).
		Msg("phase transition")
}

// rankLocked re-sorts the live agents and stamps 1-based ranks.
func (e *Engine) rankLocked() {
	ids := e.ranked[:0]
	for id, a := range e.agents {
		if a.IsActive {
			ids = append(ids, id)
		}
	}
	sortByScore(ids, e.agents)
	e.ranked = ids
	for i, id := range ids {
		e.agents[id].Rank = i + 1
	}
}

func sortByScore(ids []string, agents map[string]*AgentScore) {
	entry := func(id string) score.Entry {
		a := agents[id]
		return score.Entry{
			Score:       a.FinalScore,
			TotalProfit: a.Metrics.TotalProfit,
			Lane:        a.Assignment.Lane,
		}
	}
	// Insertion sort keeps the previous tick's order for untouched ties.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && score.Better(entry(ids[j]), entry(ids[j-1])); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// flagChampionsLocked marks the top keep-count live agents as champions.
func (e *Engine) flagChampionsLocked() {
	n := e.cfg.Pruning.OptimalKeepCount
	if n > len(e.ranked) {
		n = len(e.ranked)
	}
	e.champions = append(e.champions[:0], e.ranked[:n]...)

	flagged := make(map[string]struct{}, n)
	for _, id := range e.champions {
		flagged[id] = struct{}{}
	}
	for id, a := range e.agents {
		_, champ := flagged[id]
		a.IsChampion = champ && a.IsActive
	}
}

// persist fans a tick's durable output to the optional sinks. Sink
// failures are logged and otherwise ignored: the in-memory trail is the
// source of truth for the API.
func (e *Engine) persist(out tickOutcome) {
	if e.recorder != nil {
		for _, rec := range out.victims {
			if err := e.recorder.Append(rec); err != nil {
				e.logger.Warn().Err(err).Str("event", "audit.persist_failed").Msg("audit sink append failed")
			}
		}
	}
	if e.archiver != nil {
		for _, s := range out.samples {
			if err := e.archiver.Append(s.agentID, s.ts, s.score); err != nil {
				e.logger.Warn().Err(err).Str("event", "history.persist_failed").Msg("score archive append failed")
				break
			}
		}
	}
}
