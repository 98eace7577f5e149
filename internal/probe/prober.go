// SPDX-License-Identifier: MIT

package probe

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Result carries the outcome of probing one agent within a tick.
type Result struct {
	Record   MetricRecord
	UsagePct float64
	Err      error
}

// Prober pulls metric records from live agents. Per-agent failures are
// tolerated: the caller keeps the agent's last-known record and the tick
// continues. Calls are rate-limited so a large fleet cannot saturate the
// agents' control plane inside a single tick.
type Prober struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
	errors  atomic.Uint64
}

// NewProber creates a prober issuing at most callsPerSecond metric reads.
// A non-positive rate disables limiting.
func NewProber(callsPerSecond float64, logger zerolog.Logger) *Prober {
	limit := rate.Inf
	if callsPerSecond > 0 {
		limit = rate.Limit(callsPerSecond)
	}
	return &Prober{
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Collect probes every handle sequentially and returns one Result per agent id.
// A failed probe yields a Result with Err set; the engine decides what to keep.
func (p *Prober) Collect(ctx context.Context, handles []AgentHandle) map[string]Result {
	results := make(map[string]Result, len(handles))
	for _, h := range handles {
		if err := p.limiter.Wait(ctx); err != nil {
			// Context cancelled mid-probe: stop cleanly, partial results stand.
			return results
		}

		rec, err := h.Metrics(ctx)
		if err != nil {
			p.errors.Add(1)
			p.logger.Warn().
				Err(err).
				Str("agent_id", h.ID()).
				Str("event", "probe.agent_failed").
				Msg("metrics probe failed, keeping last known record")
			results[h.ID()] = Result{Err: err}
			continue
		}

		results[h.ID()] = Result{
			Record:   rec.Sanitized(),
			UsagePct: UsagePct(h),
		}
	}
	return results
}

// ErrorCount reports the number of per-agent probe failures observed so far.
func (p *Prober) ErrorCount() uint64 {
	return p.errors.Load()
}
