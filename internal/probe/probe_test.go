// SPDX-License-Identifier: MIT

package probe

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	id    string
	name  string
	rec   MetricRecord
	err   error
	usage float64
}

func (f *fakeHandle) ID() string   { return f.id }
func (f *fakeHandle) Name() string { return f.name }
func (f *fakeHandle) Metrics(ctx context.Context) (MetricRecord, error) {
	return f.rec, f.err
}
func (f *fakeHandle) ComputeUsagePct() float64 { return f.usage }

func TestSanitizedClampsNonFinite(t *testing.T) {
	r := MetricRecord{
		TotalProfit: math.NaN(),
		WinRate:     math.Inf(1),
		SharpeRatio: math.Inf(-1),
		TotalTrades: -3,
		MaxDrawdown: 0.2,
	}
	s := r.Sanitized()
	assert.Equal(t, 0.0, s.TotalProfit)
	assert.Equal(t, 0.0, s.WinRate)
	assert.Equal(t, 0.0, s.SharpeRatio)
	assert.Equal(t, 0, s.TotalTrades)
	assert.Equal(t, 0.2, s.MaxDrawdown)
}

func TestCollectToleratesPerAgentFailure(t *testing.T) {
	p := NewProber(0, zerolog.Nop())
	handles := []AgentHandle{
		&fakeHandle{id: "a", rec: MetricRecord{TotalProfit: 100}},
		&fakeHandle{id: "b", err: errors.New("connection refused")},
		&fakeHandle{id: "c", rec: MetricRecord{TotalProfit: 50}, usage: 40},
	}

	results := p.Collect(context.Background(), handles)
	require.Len(t, results, 3)

	assert.NoError(t, results["a"].Err)
	assert.Equal(t, 100.0, results["a"].Record.TotalProfit)

	assert.Error(t, results["b"].Err)

	assert.Equal(t, 40.0, results["c"].UsagePct)
	assert.Equal(t, uint64(1), p.ErrorCount())
}

func TestCollectStopsOnCancelledContext(t *testing.T) {
	p := NewProber(0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := p.Collect(ctx, []AgentHandle{&fakeHandle{id: "a"}})
	assert.Empty(t, results)
}

func TestUsagePctClamped(t *testing.T) {
	assert.Equal(t, 0.0, UsagePct(&fakeHandle{usage: -5}))
	assert.Equal(t, 100.0, UsagePct(&fakeHandle{usage: 250}))
	assert.Equal(t, 0.0, UsagePct(&fakeHandle{usage: math.NaN()}))
}
