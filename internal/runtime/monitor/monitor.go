// Package monitor implements the auxiliary resource monitor: it samples
// process memory and pauses pipeline intake at the source boundary while
// usage sits above a high watermark, resuming below a low watermark. The
// watermark gap is the hysteresis preventing pause/resume oscillation.
//
// The monitor only operates the source-side gate; it never touches stage
// buffers, so per-link capacity invariants are unaffected.
package monitor

import (
	"context"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/logflume/logflume/internal/runtime/flow"
	"github.com/logflume/logflume/internal/runtime/logging"
)

// Sampler reports current process memory usage in bytes.
type Sampler func() uint64

// HeapSampler reads the live heap allocation from the Go runtime.
func HeapSampler() uint64 {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return mem.Alloc
}

// Monitor watches memory usage on an interval and drives a flow.Gate.
type Monitor struct {
	gate     *flow.Gate
	sampler  Sampler
	clk      clock.Clock
	logger   logging.ServiceLogger
	interval time.Duration

	highWatermark uint64
	lowWatermark  uint64

	onTransition func(paused bool)
}

// Options customises a Monitor. Zero values select defaults: the runtime
// heap sampler, the wall clock, a nop logger, and a 250ms interval.
type Options struct {
	Sampler      Sampler
	Clock        clock.Clock
	Logger       logging.ServiceLogger
	Interval     time.Duration
	OnTransition func(paused bool)
}

// New creates a monitor driving the given gate. high must be above low;
// config validation enforces this before the orchestrator constructs one.
func New(gate *flow.Gate, high, low uint64, opts Options) *Monitor {
	m := &Monitor{
		gate:          gate,
		sampler:       opts.Sampler,
		clk:           opts.Clock,
		logger:        opts.Logger,
		interval:      opts.Interval,
		highWatermark: high,
		lowWatermark:  low,
		onTransition:  opts.OnTransition,
	}
	if m.sampler == nil {
		m.sampler = HeapSampler
	}
	if m.clk == nil {
		m.clk = clock.New()
	}
	if m.logger == nil {
		m.logger = logging.Nop()
	}
	if m.interval <= 0 {
		m.interval = 250 * time.Millisecond
	}
	return m
}

// Run samples until the context is cancelled. It always leaves the gate open
// on exit so a paused pipeline can drain during teardown.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clk.Ticker(m.interval)
	defer ticker.Stop()
	defer m.resume()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.observe(m.sampler())
		}
	}
}

func (m *Monitor) observe(used uint64) {
	switch {
	case !m.gate.Paused() && used > m.highWatermark:
		m.gate.Pause()
		m.logger.Info("memory above high watermark, pausing intake", logging.LogFields{
			"used_bytes":     used,
			"high_watermark": m.highWatermark,
		})
		if m.onTransition != nil {
			m.onTransition(true)
		}
	case m.gate.Paused() && used < m.lowWatermark:
		m.gate.Resume()
		m.logger.Info("memory below low watermark, resuming intake", logging.LogFields{
			"used_bytes":    used,
			"low_watermark": m.lowWatermark,
		})
		if m.onTransition != nil {
			m.onTransition(false)
		}
	}
}

func (m *Monitor) resume() {
	if m.gate.Paused() {
		m.gate.Resume()
		if m.onTransition != nil {
			m.onTransition(false)
		}
	}
}
