package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/logflume/logflume/internal/runtime/flow"
)

const (
	high = 1000
	low  = 600
)

func newTestMonitor(usage *atomic.Uint64) (*Monitor, *flow.Gate, *clock.Mock) {
	gate := flow.NewGate()
	mock := clock.NewMock()
	m := New(gate, high, low, Options{
		Sampler:  usage.Load,
		Clock:    mock,
		Interval: 100 * time.Millisecond,
	})
	return m, gate, mock
}

// tick advances the mock clock one sampling interval and lets the monitor
// goroutine observe it. The leading sleep gives Run time to install its
// ticker before the clock moves.
func tick(mock *clock.Mock) {
	time.Sleep(10 * time.Millisecond)
	mock.Add(100 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
}

func TestMonitorPausesAboveHighWatermark(t *testing.T) {
	var usage atomic.Uint64
	usage.Store(high + 1)
	m, gate, mock := newTestMonitor(&usage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	tick(mock)
	if !gate.Paused() {
		t.Fatal("gate should be paused above the high watermark")
	}
}

func TestMonitorHysteresis(t *testing.T) {
	var usage atomic.Uint64
	usage.Store(high + 1)
	m, gate, mock := newTestMonitor(&usage)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	tick(mock)
	if !gate.Paused() {
		t.Fatal("expected pause")
	}

	// Between the watermarks: stay paused, no oscillation.
	usage.Store(low + 50)
	tick(mock)
	if !gate.Paused() {
		t.Fatal("gate must stay paused inside the hysteresis band")
	}

	// Below the low watermark: resume.
	usage.Store(low - 1)
	tick(mock)
	if gate.Paused() {
		t.Fatal("gate should resume below the low watermark")
	}

	// Back inside the band: stay open.
	usage.Store(low + 50)
	tick(mock)
	if gate.Paused() {
		t.Fatal("gate must stay open inside the hysteresis band")
	}
}

func TestMonitorReportsTransitions(t *testing.T) {
	var usage atomic.Uint64
	usage.Store(high + 1)

	gate := flow.NewGate()
	mock := clock.NewMock()
	var transitions []bool
	m := New(gate, high, low, Options{
		Sampler:      usage.Load,
		Clock:        mock,
		Interval:     100 * time.Millisecond,
		OnTransition: func(paused bool) { transitions = append(transitions, paused) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	tick(mock)
	usage.Store(low - 1)
	tick(mock)

	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Fatalf("expected [pause resume], got %v", transitions)
	}
}

func TestMonitorReleasesGateOnShutdown(t *testing.T) {
	var usage atomic.Uint64
	usage.Store(high + 1)
	m, gate, mock := newTestMonitor(&usage)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	tick(mock)
	if !gate.Paused() {
		t.Fatal("expected pause before shutdown")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}

	if gate.Paused() {
		t.Fatal("monitor must reopen the gate on shutdown so teardown can drain")
	}
}

func TestHeapSamplerReturnsSomething(t *testing.T) {
	if HeapSampler() == 0 {
		t.Error("heap sampler should report a non-zero live heap")
	}
}
