// SPDX-License-Identifier: MIT

// Package engine implements the ATRWAC agentic tuning lifecycle: a phased,
// metric-driven controller that progressively retires underperforming
// trading agents until only a champion set remains.
//
// The engine observes agents through a read-only metrics probe and controls
// them through two injected callbacks (stop, delete). It never constructs or
// restarts agents. All state is guarded by a single mutex; the evaluation
// loop is one owned goroutine cancelled via context.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfleet/atrwac/internal/audit"
	"github.com/quantfleet/atrwac/internal/config"
	"github.com/quantfleet/atrwac/internal/ledger"
	xglog "github.com/quantfleet/atrwac/internal/log"
	"github.com/quantfleet/atrwac/internal/probe"
)

// Recorder persists audit rows outside the engine's in-memory trail.
type Recorder interface {
	Append(audit.Record) error
}

// Archiver persists score history samples outside the engine.
type Archiver interface {
	Append(agentID string, ts time.Time, score float64) error
}

// TickHook receives copied snapshots after every completed evaluation.
type TickHook func(status StatusSnapshot, rankings []AgentScore)

// Engine is the tuning lifecycle controller.
type Engine struct {
	mu sync.Mutex

	logger   zerolog.Logger
	auditLog *audit.Logger
	clock    func() time.Time
	prober   *probe.Prober

	cfg         config.Engine
	source      probe.AgentSource
	stopAgent   probe.StopFunc
	deleteAgent probe.DeleteFunc

	ledger    *ledger.Ledger
	agents    map[string]*AgentScore
	ranked    []string // live agent ids in rank order
	champions []string // champion ids in rank order
	history   []audit.Record

	phase     Phase
	startedAt time.Time
	lastTick  time.Time
	ticks     uint64
	running   bool

	cancel context.CancelFunc
	done   chan struct{}

	recorder Recorder
	archiver Archiver
	onTick   TickHook
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithClock injects the time source. The clock is the only test seam for time.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder attaches a persistent audit sink. Failures are logged,
// never propagated into the tick.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithArchiver attaches a persistent score-history sink.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archiver = a }
}

// WithTickHook registers a post-tick observer, e.g. the rankings publisher.
func WithTickHook(fn TickHook) Option {
	return func(e *Engine) { e.onTick = fn }
}

// WithProbeRate bounds metrics probe calls per second. Zero disables limiting.
func WithProbeRate(callsPerSecond float64) Option {
	return func(e *Engine) {
		e.prober = probe.NewProber(callsPerSecond, e.logger)
	}
}

// New constructs an engine. The three callables are the only outside
// contracts the engine depends on; deleteAgent is held for the operator
// API and never invoked by the evaluation loop.
func New(cfg config.Engine, source probe.AgentSource, stopAgent probe.StopFunc, deleteAgent probe.DeleteFunc, opts ...Option) (*Engine, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("agent source must not be nil")
	}

	e := &Engine{
		logger:      xglog.WithComponent("engine"),
		auditLog:    audit.NewLogger(),
		clock:       time.Now,
		cfg:         cfg,
		source:      source,
		stopAgent:   stopAgent,
		deleteAgent: deleteAgent,
		ledger:      ledger.New(),
		agents:      make(map[string]*AgentScore),
		phase:       PhaseInitialBlast,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.prober == nil {
		e.prober = probe.NewProber(0, e.logger)
	}
	return e, nil
}

// Start registers the fleet, stamps the start time and spawns the
// evaluation loop. Starting a running engine is a no-op with a warning.
//
// Starting again after Stop begins a fresh tuning run over the surviving
// fleet: the epoch is re-stamped and the phase returns to INITIAL_BLAST,
// while agent records, evictions and the audit trail from the previous
// run stay on the books.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.logger.Warn().Str("event", "engine.already_running").Msg("start ignored, engine already running")
		return nil
	}
	e.mu.Unlock()

	// Registration is the only suspension point of Start; take it before
	// mutating any state so a failed source leaves the engine stopped.
	handles, err := e.source(ctx)
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}

	e.startedAt = e.clock()
	e.phase = PhaseInitialBlast
	e.register(handles)

	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	live := e.liveCount()
	e.mu.Unlock()

	e.auditLog.EngineLifecycle(audit.EventEngineStart, live)
	e.logger.Info().
		Str("event", "engine.start").
		Int(xglog.FieldLiveSize, live).
		Str(xglog.FieldPhase, string(PhaseInitialBlast)).
		Msg("tuning engine started")

	go e.run(loopCtx)
	return nil
}

// register assigns lanes and GPU slots by the deterministic init rule:
// the i-th accepted agent gets lane i and GPU slot i/AgentsPerGPU.
// Only the first handle per id is registered; duplicates are rejected.
func (e *Engine) register(handles []probe.AgentHandle) {
	i := 0
	for _, h := range handles {
		id := h.ID()
		if _, dup := e.agents[id]; dup {
			e.logger.Warn().
				Str(xglog.FieldAgentID, id).
				Str("event", "engine.duplicate_agent").
				Msg("duplicate agent id from source rejected")
			continue
		}

		lane, gpu := i, i/ledger.AgentsPerGPU
		if err := e.ledger.Assign(id, lane, gpu); err != nil {
			e.logger.Error().
				Err(err).
				Str(xglog.FieldAgentID, id).
				Msg("resource assignment failed")
			continue
		}

		e.agents[id] = &AgentScore{
			ID:         id,
			Name:       h.Name(),
			Assignment: ledger.Assignment{GPU: gpu, Lane: lane},
			IsActive:   true,
		}
		e.ranked = append(e.ranked, id)
		i++
	}
}

// Stop cancels the evaluation loop and waits for it to exit. The loop
// observes the cancellation before the next tick completes. Stopping a
// stopped engine is a no-op. Live agents are not resumed; champions and
// pruned entries remain in memory.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done

	e.mu.Lock()
	e.running = false
	live := e.liveCount()
	e.mu.Unlock()

	e.auditLog.EngineLifecycle(audit.EventEngineStop, live)
	e.logger.Info().Str("event", "engine.stop").Msg("tuning engine stopped")
}

// Running reports whether the evaluation loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// UpdateConfig atomically replaces the effective configuration with cfg
// merged under the partial update. A rejected update leaves every
// observable field unchanged. Accepted changes take effect on the next tick.
func (e *Engine) UpdateConfig(u config.Update) (config.Engine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := config.Apply(e.cfg, u)
	if err != nil {
		e.auditLog.ConfigUpdate("operator", "rejected")
		return config.Engine{}, err
	}
	e.cfg = next
	e.auditLog.ConfigUpdate("operator", "success")
	e.logger.Info().
		Str("event", "config.updated").
		Str("target", next.Target.String()).
		Msg("engine configuration replaced")
	return next, nil
}

// ReplaceConfig swaps in a fully validated configuration, used by the
// config file watcher. Invalid configurations are rejected whole.
func (e *Engine) ReplaceConfig(cfg config.Engine) error {
	if err := config.Validate(cfg); err != nil {
		e.auditLog.ConfigUpdate("file", "rejected")
		return err
	}

	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()

	e.auditLog.ConfigUpdate("file", "success")
	e.logger.Info().
		Str("event", "config.reloaded").
		Str("target", cfg.Target.String()).
		Msg("engine configuration reloaded from file")
	return nil
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() config.Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// interval returns the current evaluation interval.
func (e *Engine) interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.EvaluationInterval
}

// liveCount counts active agents. Callers hold the lock.
func (e *Engine) liveCount() int {
	n := 0
	for _, a := range e.agents {
		if a.IsActive {
			n++
		}
	}
	return n
}
