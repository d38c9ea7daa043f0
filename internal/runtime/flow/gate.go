package flow

import (
	"context"
	"sync"
)

// Gate is a pause/resume latch. The resource monitor holds the source-side
// gate closed while memory is above the high watermark; the source pump
// waits on it before pulling each chunk. The gate never touches stage
// buffers, so per-link invariants are unaffected.
type Gate struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

// NewGate returns an open gate.
func NewGate() *Gate {
	return &Gate{resume: closedChan()}
}

// Wait blocks while the gate is paused. It returns ctx.Err() if the context
// is cancelled during the wait.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.resume
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause closes the gate. Callers already past Wait are unaffected.
func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.resume = make(chan struct{})
}

// Resume reopens the gate, releasing all waiters.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.resume)
}

// Paused reports whether the gate is currently closed.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
