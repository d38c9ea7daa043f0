package stage

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/logflume/logflume/internal/runtime/record"
)

// windowLength is the fixed throttling window of the governor.
const windowLength = time.Second

// Governor paces throughput to at most itemsPerSecond records using a
// fixed one-second window token counter: the counter starts each window at
// itemsPerSecond, every forwarded record consumes one token, and when tokens
// run out delivery suspends until the window boundary. It throttles, it
// never drops; a burst of up to itemsPerSecond right after a window reset is
// the accepted trade-off of the fixed-window scheme.
//
// The clock is injectable so tests drive windows deterministically.
type Governor struct {
	name           string
	itemsPerSecond int
	clk            clock.Clock

	tokens int
	window *clock.Timer
}

// NewGovernor creates a rate governor stage. A nil clock selects the wall
// clock.
func NewGovernor(name string, itemsPerSecond int, clk clock.Clock) *Governor {
	if clk == nil {
		clk = clock.New()
	}
	return &Governor{
		name:           name,
		itemsPerSecond: itemsPerSecond,
		clk:            clk,
		tokens:         itemsPerSecond,
	}
}

func (g *Governor) Name() string { return g.name }

// Process forwards the batch unchanged once enough tokens are available,
// consuming one token per record. The window wait is the stage's only
// blocking point and aborts promptly on cancellation.
func (g *Governor) Process(ctx context.Context, batch record.Batch, emit Emit[record.Batch]) error {
	if g.window == nil {
		// The first record opens the first window.
		g.window = g.clk.Timer(windowLength)
	}
	need := batch.Len()
	for need > 0 {
		if g.tokens == 0 {
			if err := g.awaitWindow(ctx); err != nil {
				return err
			}
		}
		take := need
		if take > g.tokens {
			take = g.tokens
		}
		g.tokens -= take
		need -= take
	}
	return emit(ctx, batch)
}

func (g *Governor) Flush(context.Context, Emit[record.Batch]) error { return nil }

// awaitWindow suspends until the current window elapses, then refills the
// token counter and opens the next window.
func (g *Governor) awaitWindow(ctx context.Context) error {
	select {
	case <-g.window.C:
	case <-ctx.Done():
		g.window.Stop()
		return ctx.Err()
	}
	g.tokens = g.itemsPerSecond
	g.window = g.clk.Timer(windowLength)
	return nil
}

// Tokens returns the tokens remaining in the current window.
func (g *Governor) Tokens() int { return g.tokens }
