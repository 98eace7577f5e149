// SPDX-License-Identifier: MIT

// Package fleet provides agent fleet sources for the tuning engine. The
// simulated fleet drives the daemon in development and demo deployments
// where no real trading cluster is attached.
package fleet

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/quantfleet/atrwac/internal/probe"
)

// SimulatedAgent is one synthetic trading agent. Its metrics follow a
// seeded random walk so repeated runs with the same seed reproduce the
// same tuning outcome.
type SimulatedAgent struct {
	id   string
	name string

	mu      sync.Mutex
	rng     *rand.Rand
	rec     probe.MetricRecord
	usage   float64
	stopped bool
}

func (a *SimulatedAgent) ID() string   { return a.id }
func (a *SimulatedAgent) Name() string { return a.name }

// Metrics advances the random walk one step and returns the new record.
func (a *SimulatedAgent) Metrics(ctx context.Context) (probe.MetricRecord, error) {
	if err := ctx.Err(); err != nil {
		return probe.MetricRecord{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return a.rec, nil
	}

	// Each step trades a handful of times with a per-agent edge baked
	// into the walk's drift.
	trades := 1 + a.rng.Intn(5)
	a.rec.TotalTrades += trades
	step := (a.rng.Float64() - 0.45) * 200
	a.rec.TotalProfit += step
	a.rec.ProfitPct = a.rec.TotalProfit / 100
	a.rec.WinRate = clamp(a.rec.WinRate+(a.rng.Float64()-0.5)*0.02, 0.2, 0.8)
	a.rec.AvgTradeDurationMinutes = clamp(a.rec.AvgTradeDurationMinutes+(a.rng.Float64()-0.5)*2, 1, 120)
	a.rec.MaxDrawdown = clamp(a.rec.MaxDrawdown+(a.rng.Float64()-0.5)*0.01, 0, 0.6)
	a.rec.SharpeRatio = clamp(a.rec.SharpeRatio+(a.rng.Float64()-0.5)*0.1, -3, 3)
	a.rec.SentimentAccuracy = clamp(a.rec.SentimentAccuracy+(a.rng.Float64()-0.5)*0.02, 0.3, 0.9)
	return a.rec, nil
}

// ComputeUsagePct implements the optional usage capability.
func (a *SimulatedAgent) ComputeUsagePct() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// Stopped reports whether the agent has been halted.
func (a *SimulatedAgent) Stopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Simulated is a fixed-size synthetic fleet.
type Simulated struct {
	mu     sync.Mutex
	agents []*SimulatedAgent
	byID   map[string]*SimulatedAgent
}

// NewSimulated creates a fleet of n agents seeded deterministically.
func NewSimulated(n int, seed int64) *Simulated {
	root := rand.New(rand.NewSource(seed))
	f := &Simulated{
		agents: make([]*SimulatedAgent, 0, n),
		byID:   make(map[string]*SimulatedAgent, n),
	}
	for i := 0; i < n; i++ {
		a := &SimulatedAgent{
			id:   fmt.Sprintf("sim-%03d", i),
			name: fmt.Sprintf("Simulated Strategy %03d", i),
			rng:  rand.New(rand.NewSource(root.Int63())),
			rec: probe.MetricRecord{
				WinRate:                 0.5,
				AvgTradeDurationMinutes: 30,
				MaxDrawdown:             0.1,
				SharpeRatio:             0.5,
				SentimentAccuracy:       0.6,
			},
			usage: 10 + root.Float64()*40,
		}
		f.agents = append(f.agents, a)
		f.byID[a.id] = a
	}
	return f
}

// Source returns the engine-facing agent source.
func (f *Simulated) Source() probe.AgentSource {
	return func(ctx context.Context) ([]probe.AgentHandle, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		handles := make([]probe.AgentHandle, len(f.agents))
		for i, a := range f.agents {
			handles[i] = a
		}
		return handles, nil
	}
}

// Stop returns the engine-facing stop callback.
func (f *Simulated) Stop() probe.StopFunc {
	return func(_ context.Context, id string) (bool, error) {
		f.mu.Lock()
		a, ok := f.byID[id]
		f.mu.Unlock()
		if !ok {
			return false, fmt.Errorf("unknown agent %q", id)
		}
		a.mu.Lock()
		a.stopped = true
		a.usage = 0
		a.mu.Unlock()
		return true, nil
	}
}

// Delete returns the engine-facing delete callback. Deleted agents leave
// the fleet listing entirely.
func (f *Simulated) Delete() probe.DeleteFunc {
	return func(_ context.Context, id string) (bool, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		a, ok := f.byID[id]
		if !ok {
			return false, fmt.Errorf("unknown agent %q", id)
		}
		a.mu.Lock()
		a.stopped = true
		a.mu.Unlock()
		delete(f.byID, id)
		kept := f.agents[:0]
		for _, keep := range f.agents {
			if keep.id != id {
				kept = append(kept, keep)
			}
		}
		f.agents = kept
		return true, nil
	}
}

// Size returns the number of agents still listed.
func (f *Simulated) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.agents)
}
