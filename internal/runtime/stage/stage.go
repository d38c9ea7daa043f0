// Package stage defines the pipeline stage contract and its five concrete
// variants: filter, formatter, batcher, rate governor, and progress tracker.
//
// A stage is a pure processing unit; all flow control lives in the links
// connecting stages (see the flow package). The generic Run pump drives a
// stage from its inbound link to its outbound link, preserving arrival order
// and returning each item's credit only after the stage has fully processed
// it.
package stage

import (
	"context"

	"github.com/logflume/logflume/internal/runtime/flow"
)

// Emit hands one output item downstream. Implementations of Stage call it
// zero or more times per input.
type Emit[T any] func(context.Context, T) error

// Stage transforms items of type In into items of type Out. Process is
// called once per input in arrival order; Flush runs exactly once after
// upstream end-of-input so buffering stages can emit their remainder.
// Stages own their internal buffers exclusively.
type Stage[In, Out any] interface {
	Name() string
	Process(ctx context.Context, item In, emit Emit[Out]) error
	Flush(ctx context.Context, emit Emit[Out]) error
}

// Run pumps a stage until upstream end-of-input or failure. It receives one
// item, processes it, then returns the item's credit, so at most one item
// per stage is in flight beyond the link buffers. On clean end-of-input it
// flushes the stage and closes the outbound link; on error the outbound link
// is left open because the orchestrator tears everything down anyway.
func Run[In, Out any](ctx context.Context, s Stage[In, Out], in *flow.Link[In], out *flow.Link[Out]) error {
	emit := func(ctx context.Context, item Out) error {
		return out.Send(ctx, item)
	}

	for {
		item, ok, err := in.Recv(ctx)
		if err != nil {
			return err
		}
		if !ok {
			if err := s.Flush(ctx, emit); err != nil {
				return err
			}
			out.Close()
			return nil
		}
		if err := s.Process(ctx, item, emit); err != nil {
			return err
		}
		if err := in.Release(1); err != nil {
			return err
		}
	}
}
