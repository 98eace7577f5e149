// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/quantfleet/atrwac/internal/config"
	"github.com/quantfleet/atrwac/internal/probe"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAgent struct {
	id    string
	name  string
	mu    sync.Mutex
	rec   probe.MetricRecord
	usage float64
	err   error
}

func (f *fakeAgent) ID() string   { return f.id }
func (f *fakeAgent) Name() string { return f.name }

func (f *fakeAgent) Metrics(context.Context) (probe.MetricRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rec, f.err
}

func (f *fakeAgent) ComputeUsagePct() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usage
}

func (f *fakeAgent) set(rec probe.MetricRecord) {
	f.mu.Lock()
	f.rec = rec
	f.mu.Unlock()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder captures stop and delete callback invocations.
type callRecorder struct {
	mu      sync.Mutex
	stopped []string
	deleted []string
}

func (r *callRecorder) stop(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = append(r.stopped, id)
	return true, nil
}

func (r *callRecorder) delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return true, nil
}

func (r *callRecorder) stoppedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stopped...)
}

func (r *callRecorder) deletedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}

// newFleet builds n agents with strictly decreasing profit so that the
// max_profit preset ranks agent-0 first.
func newFleet(n int) []*fakeAgent {
	agents := make([]*fakeAgent, n)
	for i := 0; i < n; i++ {
		agents[i] = &fakeAgent{
			id:   fmt.Sprintf("agent-%02d", i),
			name: fmt.Sprintf("Strategy %02d", i),
			rec: probe.MetricRecord{
				TotalProfit: float64((n - i) * 1000),
				WinRate:     0.5,
				TotalTrades: 100,
				SharpeRatio: 1.0,
			},
			usage: 20,
		}
	}
	return agents
}

func sourceFor(agents []*fakeAgent) probe.AgentSource {
	return func(context.Context) ([]probe.AgentHandle, error) {
		handles := make([]probe.AgentHandle, len(agents))
		for i, a := range agents {
			handles[i] = a
		}
		return handles, nil
	}
}

func newTestEngine(t *testing.T, agents []*fakeAgent, cfg config.Engine) (*Engine, *fakeClock, *callRecorder) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	calls := &callRecorder{}
	eng, err := New(cfg, sourceFor(agents), calls.stop, calls.delete, WithClock(clock.Now))
	require.NoError(t, err)
	return eng, clock, calls
}

func startEngine(t *testing.T, eng *Engine) {
	t.Helper()
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(eng.Stop)
}

// tick drives one scheduled-style evaluation with pruning allowed, the
// same way the loop goroutine does. ForceEvaluation never prunes, so
// lifecycle tests go through here.
func tick(t *testing.T, eng *Engine) {
	t.Helper()
	require.NoError(t, eng.evaluate(context.Background(), true))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Pruning.FirstKeepFrac = 0
	_, err := New(cfg, sourceFor(nil), nil, nil)
	assert.Error(t, err)
}

func TestNewRejectsNilSource(t *testing.T) {
	_, err := New(config.Default(), nil, nil, nil)
	assert.Error(t, err)
}

func TestStartRegistersFleet(t *testing.T) {
	agents := newFleet(12)
	eng, _, _ := newTestEngine(t, agents, config.Default())
	startEngine(t, eng)

	status := eng.Status()
	assert.True(t, status.Running)
	assert.Equal(t, PhaseInitialBlast, status.Phase)
	assert.Equal(t, 12, status.LiveAgents)
	assert.Equal(t, 12, status.TotalAgents)

	res := eng.Resources()
	assert.Equal(t, 12, res.LiveLanes)
	assert.Equal(t, 3, res.ActiveGPUs) // 5 + 5 + 2
	assert.Equal(t, float64(0), res.ComputeSavingsPct)

	// Deterministic packing: lane i on GPU i/5.
	require.Len(t, res.Lanes, 12)
	assert.Equal(t, 0, res.Lanes[0].Lane)
	assert.Equal(t, 0, res.Lanes[0].GPU)
	assert.Equal(t, "agent-00", res.Lanes[0].AgentID)
	assert.Equal(t, 11, res.Lanes[11].Lane)
	assert.Equal(t, 2, res.Lanes[11].GPU)
}

func TestStartTwiceIsNoop(t *testing.T) {
	agents := newFleet(3)
	eng, _, _ := newTestEngine(t, agents, config.Default())
	startEngine(t, eng)
	require.NoError(t, eng.Start(context.Background()))
	assert.Equal(t, 3, eng.Status().TotalAgents)
}

func TestDuplicateAgentIDRejected(t *testing.T) {
	agents := newFleet(3)
	agents = append(agents, &fakeAgent{id: "agent-00", name: "impostor"})
	eng, _, _ := newTestEngine(t, agents, config.Default())
	startEngine(t, eng)

	status := eng.Status()
	assert.Equal(t, 3, status.TotalAgents)

	a, err := eng.Agent("agent-00")
	require.NoError(t, err)
	assert.Equal(t, "Strategy 00", a.Name)
}

func TestForceEvaluationRanksByProfit(t *testing.T) {
	agents := newFleet(5)
	eng, _, _ := newTestEngine(t, agents, config.Default())
	startEngine(t, eng)

	require.NoError(t, eng.ForceEvaluation(context.Background()))

	rankings := eng.Rankings()
	require.Len(t, rankings, 5)
	for i, r := range rankings {
		assert.Equal(t, i+1, r.Rank)
		assert.Equal(t, fmt.Sprintf("agent-%02d", i), r.ID)
		assert.True(t, r.IsActive)
		require.Len(t, r.ScoreHistory, 1)
	}
	assert.Greater(t, rankings[0].FinalScore, rankings[4].FinalScore)

	champs := eng.Champions()
	require.Len(t, champs, 3)
	assert.Equal(t, "agent-00", champs[0].AgentID)
	assert.Equal(t, 1, champs[0].Rank)
}

func TestForceEvaluationRequiresRunning(t *testing.T) {
	eng, _, _ := newTestEngine(t, newFleet(2), config.Default())
	err := eng.ForceEvaluation(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestForceEvaluationDoesNotPrune(t *testing.T) {
	agents := newFleet(10)
	cfg := config.Default()
	require.True(t, cfg.AutoPrune)
	eng, clock, calls := newTestEngine(t, agents, cfg)
	startEngine(t, eng)
	ctx := context.Background()

	// Deep into FIRST_PRUNING territory a forced pass re-scores and
	// re-ranks but must leave the fleet intact even with auto-prune on.
	clock.Advance(31 * 24 * time.Hour)
	require.NoError(t, eng.ForceEvaluation(ctx))

	status := eng.Status()
	assert.Equal(t, PhaseFirstPruning, status.Phase)
	assert.Equal(t, 10, status.LiveAgents)
	assert.Empty(t, calls.stoppedIDs())
	assert.Empty(t, eng.PruningHistory())

	// The next scheduled pass evicts as usual.
	tick(t, eng)
	assert.Equal(t, 5, eng.Status().LiveAgents)
	assert.Len(t, calls.stoppedIDs(), 5)
}

func TestNoPruningDuringInitialBlast(t *testing.T) {
	agents := newFleet(10)
	eng, clock, calls := newTestEngine(t, agents, config.Default())
	startEngine(t, eng)

	clock.Advance(29 * 24 * time.Hour)
	tick(t, eng)

	status := eng.Status()
	assert.Equal(t, PhaseInitialBlast, status.Phase)
	assert.Equal(t, 10, status.LiveAgents)
	assert.Empty(t, calls.stoppedIDs())
	assert.Equal(t, 1, status.DaysUntilNextPhase)
}

func TestFullLifecycle(t *testing.T) {
	agents := newFleet(10)
	eng, clock, calls := newTestEngine(t, agents, config.Default())
	startEngine(t, eng)

	// Day 30: FIRST_PRUNING keeps max(3, floor(10*0.5)) = 5.
	clock.Advance(30 * 24 * time.Hour)
	tick(t, eng)
	status := eng.Status()
	assert.Equal(t, PhaseFirstPruning, status.Phase)
	assert.Equal(t, 5, status.LiveAgents)
	assert.InDelta(t, 50.0, status.ComputeSavingsPct, 0.01)

	// Worst agent is stopped first.
	stopped := calls.stoppedIDs()
	require.Len(t, stopped, 5)
	assert.Equal(t, "agent-09", stopped[0])

	// Day 60: DEEP_PRUNING keeps max(3, floor(5*0.25)) = 3. With the
	// fleet down to the keep count the engine settles into MAINTENANCE
	// in the same pass.
	clock.Advance(30 * 24 * time.Hour)
	tick(t, eng)
	status = eng.Status()
	assert.Equal(t, PhaseMaintenance, status.Phase)
	assert.Equal(t, 3, status.LiveAgents)

	// Day 90: MAINTENANCE holds; the schedule never pulls the phase back.
	clock.Advance(30 * 24 * time.Hour)
	tick(t, eng)
	status = eng.Status()
	assert.Equal(t, PhaseMaintenance, status.Phase)
	assert.Equal(t, 3, status.LiveAgents)
	assert.Equal(t, []string{"agent-00", "agent-01", "agent-02"}, status.Champions)
	assert.InDelta(t, 70.0, status.ComputeSavingsPct, 0.01)
	assert.Equal(t, 0, status.DaysUntilNextPhase)

	// Audit trail: 7 evictions, worst-first within each pass.
	history := eng.PruningHistory()
	require.Len(t, history, 7)
	assert.Equal(t, "agent-09", history[0].AgentID)
	assert.Equal(t, string(PhaseFirstPruning), history[0].Phase)
	assert.Contains(t, history[0].Reason, "Below threshold in first_pruning phase")
	assert.Contains(t, history[0].Reason, "(rank 10/10)")
	assert.Equal(t, string(PhaseDeepPruning), history[5].Phase)

	// Pruned agents keep their book entry.
	pruned, err := eng.Agent("agent-09")
	require.NoError(t, err)
	assert.False(t, pruned.IsActive)
	require.NotNil(t, pruned.PrunedAt)
	assert.NotEmpty(t, pruned.PrunedReason)
}

func TestPhaseNeverRegresses(t *testing.T) {
	agents := newFleet(6)
	eng, clock, _ := newTestEngine(t, agents, config.Default())
	startEngine(t, eng)
	ctx := context.Background()

	clock.Advance(35 * 24 * time.Hour)
	require.NoError(t, eng.ForceEvaluation(ctx))
	require.Equal(t, PhaseFirstPruning, eng.Status().Phase)

	// Pushing the boundaries past the elapsed time must not move the
	// phase back.
	first, deep, optimal := 80, 85, 95
	_, err := eng.UpdateConfig(config.Update{
		Pruning: &config.PruningUpdate{
			FirstPruningDays: &first,
			DeepPruningDays:  &deep,
			OptimalStateDays: &optimal,
		},
	})
	require.NoError(t, err)

	require.NoError(t, eng.ForceEvaluation(ctx))
	assert.Equal(t, PhaseFirstPruning, eng.Status().Phase)
}

func TestMinTradesProtectsRookies(t *testing.T) {
	agents := newFleet(4)
	// Worst profit AND too few trades: protected from eviction.
	agents[3].set(probe.MetricRecord{TotalProfit: 10, WinRate: 0.1, TotalTrades: 2})

	cfg := config.Default()
	cfg.Pruning.OptimalKeepCount = 2
	eng, clock, calls := newTestEngine(t, agents, cfg)
	startEngine(t, eng)

	clock.Advance(30 * 24 * time.Hour)
	tick(t, eng)

	// keep = max(2, floor(4*0.5)) = 2, but agent-03 is protected, so only
	// agent-02 is evicted.
	assert.Equal(t, []string{"agent-02"}, calls.stoppedIDs())
	assert.Equal(t, 3, eng.Status().LiveAgents)

	rookie, err := eng.Agent("agent-03")
	require.NoError(t, err)
	assert.True(t, rookie.IsActive)
}

func TestAutoPruneDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.AutoPrune = false
	eng, clock, calls := newTestEngine(t, newFleet(8), cfg)
	startEngine(t, eng)

	clock.Advance(45 * 24 * time.Hour)
	tick(t, eng)

	status := eng.Status()
	assert.Equal(t, PhaseFirstPruning, status.Phase)
	assert.Equal(t, 8, status.LiveAgents)
	assert.Empty(t, calls.stoppedIDs())
}

func TestProbeFailureKeepsLastKnownRecord(t *testing.T) {
	agents := newFleet(3)
	eng, _, _ := newTestEngine(t, agents, config.Default())
	startEngine(t, eng)
	ctx := context.Background()

	require.NoError(t, eng.ForceEvaluation(ctx))
	before, err := eng.Agent("agent-01")
	require.NoError(t, err)

	agents[1].mu.Lock()
	agents[1].err = errors.New("agent unreachable")
	agents[1].mu.Unlock()

	require.NoError(t, eng.ForceEvaluation(ctx))
	after, err := eng.Agent("agent-01")
	require.NoError(t, err)

	assert.Equal(t, before.Metrics, after.Metrics)
	assert.True(t, after.IsActive)
	assert.Len(t, after.ScoreHistory, 2)
}

func TestSourceFailureAbortsTick(t *testing.T) {
	fail := errors.New("fleet registry down")
	source := func(context.Context) ([]probe.AgentHandle, error) { return nil, fail }

	clock := &fakeClock{now: time.Now()}
	eng, err := New(config.Default(), source, nil, nil, WithClock(clock.Now))
	require.NoError(t, err)

	startErr := eng.Start(context.Background())
	assert.ErrorIs(t, startErr, fail)
	assert.False(t, eng.Running())
}

func TestEmptyFleet(t *testing.T) {
	eng, clock, _ := newTestEngine(t, nil, config.Default())
	startEngine(t, eng)

	clock.Advance(40 * 24 * time.Hour)
	tick(t, eng)

	status := eng.Status()
	assert.Equal(t, 0, status.LiveAgents)
	assert.Equal(t, PhaseMaintenance, status.Phase)
	assert.Empty(t, eng.Rankings())
	assert.Empty(t, eng.Champions())
	assert.Equal(t, float64(0), status.ComputeSavingsPct)
}

func TestManualPrune(t *testing.T) {
	agents := newFleet(4)
	eng, _, calls := newTestEngine(t, agents, config.Default())
	startEngine(t, eng)
	ctx := context.Background()
	require.NoError(t, eng.ForceEvaluation(ctx))

	rec, err := eng.ManualPrune(ctx, "agent-02", "")
	require.NoError(t, err)
	assert.Equal(t, "agent-02", rec.AgentID)
	assert.Equal(t, "Manually pruned by operator", rec.Reason)
	assert.NotEmpty(t, rec.ID)

	// Manual prune deletes, scheduled prune only stops.
	assert.Equal(t, []string{"agent-02"}, calls.deletedIDs())
	assert.Empty(t, calls.stoppedIDs())

	assert.Equal(t, 3, eng.Status().LiveAgents)
	history := eng.PruningHistory()
	require.Len(t, history, 1)
	assert.Equal(t, rec.ID, history[0].ID)

	// Survivors are re-ranked without a gap.
	rankings := eng.Rankings()
	require.Len(t, rankings, 3)
	assert.Equal(t, 3, rankings[2].Rank)
	assert.Equal(t, "agent-03", rankings[2].ID)
}

func TestManualPruneErrors(t *testing.T) {
	eng, _, _ := newTestEngine(t, newFleet(2), config.Default())
	startEngine(t, eng)
	ctx := context.Background()

	_, err := eng.ManualPrune(ctx, "no-such-agent", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = eng.ManualPrune(ctx, "agent-01", "cleanup")
	require.NoError(t, err)
	_, err = eng.ManualPrune(ctx, "agent-01", "cleanup")
	assert.ErrorIs(t, err, ErrAlreadyPruned)
}

func TestUpdateConfigAtomicOnFailure(t *testing.T) {
	eng, _, _ := newTestEngine(t, newFleet(2), config.Default())

	before := eng.Config()
	bad := -1.5
	_, err := eng.UpdateConfig(config.Update{
		Weights: &config.WeightsUpdate{Profit: &bad},
	})
	require.Error(t, err)
	assert.Equal(t, before, eng.Config())
}

func TestUpdateConfigTargetReseedsWeights(t *testing.T) {
	eng, _, _ := newTestEngine(t, newFleet(2), config.Default())

	target := string(config.TargetMaxWinRate)
	next, err := eng.UpdateConfig(config.Update{Target: &target})
	require.NoError(t, err)

	want, ok := config.PresetWeights(config.TargetMaxWinRate)
	require.True(t, ok)
	assert.Equal(t, want, next.Weights)
	assert.Equal(t, config.TargetMaxWinRate, next.Target)
}

func TestTickHookReceivesSnapshots(t *testing.T) {
	var mu sync.Mutex
	var gotStatus StatusSnapshot
	var gotRankings []AgentScore

	clock := &fakeClock{now: time.Now()}
	eng, err := New(config.Default(), sourceFor(newFleet(3)), nil, nil,
		WithClock(clock.Now),
		WithTickHook(func(s StatusSnapshot, r []AgentScore) {
			mu.Lock()
			gotStatus, gotRankings = s, r
			mu.Unlock()
		}),
	)
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(eng.Stop)

	require.NoError(t, eng.ForceEvaluation(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, gotStatus.LiveAgents)
	require.Len(t, gotRankings, 3)
	assert.Equal(t, 1, gotRankings[0].Rank)
}

func TestSnapshotIsolation(t *testing.T) {
	eng, _, _ := newTestEngine(t, newFleet(2), config.Default())
	startEngine(t, eng)
	require.NoError(t, eng.ForceEvaluation(context.Background()))

	snap := eng.Rankings()
	require.NotEmpty(t, snap)
	snap[0].ScoreHistory[0].Score = -999
	snap[0].Name = "mutated"

	fresh, err := eng.Agent(snap[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", fresh.Name)
	assert.NotEqual(t, float64(-999), fresh.ScoreHistory[0].Score)
}

func TestMaintenanceEnteredWhenFleetAtOrBelowKeep(t *testing.T) {
	cfg := config.Default()
	cfg.Pruning.OptimalKeepCount = 5
	eng, _, _ := newTestEngine(t, newFleet(2), cfg)
	startEngine(t, eng)

	// Two live agents against a keep count of five: the very first
	// evaluation settles into MAINTENANCE, regardless of elapsed days.
	require.NoError(t, eng.ForceEvaluation(context.Background()))

	status := eng.Status()
	assert.Equal(t, PhaseMaintenance, status.Phase)
	assert.Equal(t, 2, status.LiveAgents)
	assert.Equal(t, []string{"agent-00", "agent-01"}, status.Champions)
}

func TestRestartKeepsPrunedBookkeeping(t *testing.T) {
	agents := newFleet(4)
	eng, clock, _ := newTestEngine(t, agents, config.Default())
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(eng.Stop)

	clock.Advance(30 * 24 * time.Hour)
	tick(t, eng)
	require.Equal(t, 3, eng.Status().LiveAgents)

	// A restart begins a fresh tuning run: new epoch, phase back to
	// INITIAL_BLAST, but evictions from the previous run stay on the books.
	eng.Stop()
	require.NoError(t, eng.Start(context.Background()))

	status := eng.Status()
	assert.True(t, status.Running)
	assert.Equal(t, PhaseInitialBlast, status.Phase)
	assert.Equal(t, 0, status.DaysElapsed)
	assert.Equal(t, 3, status.LiveAgents)
	assert.Equal(t, 4, status.TotalAgents)

	pruned, err := eng.Agent("agent-03")
	require.NoError(t, err)
	assert.False(t, pruned.IsActive)
	assert.Len(t, eng.PruningHistory(), 1)
}

func TestStopIsIdempotent(t *testing.T) {
	eng, _, _ := newTestEngine(t, newFleet(2), config.Default())
	require.NoError(t, eng.Start(context.Background()))
	eng.Stop()
	eng.Stop()
	assert.False(t, eng.Running())
}
