// Package flow implements the credit-based demand protocol connecting
// adjacent pipeline endpoints.
//
// Every stage boundary is a Link: a single-writer, single-reader conduit
// whose downstream side advertises capacity as credits. The upstream side
// consumes one credit per delivered item and suspends when credits reach
// zero; the downstream side returns credits after it has finished consuming
// an item (the "drained" notification, not the dequeue). Because credits are
// only returned on consumption completion, the number of items buffered or
// in flight on a link never exceeds its capacity, which is what bounds
// pipeline memory regardless of input size.
package flow

import (
	"context"
	"fmt"
	"sync"

	flumeerrors "github.com/logflume/logflume/internal/runtime/errors"
)

// Link is one credit-gated connection between an upstream producer and a
// downstream consumer. Exactly one goroutine may call Send/Close and exactly
// one may call Recv/Release.
type Link[T any] struct {
	name     string
	capacity int

	items   chan T
	credits chan struct{}
	done    chan struct{}

	closeOnce sync.Once
}

// NewLink creates a link with the given credit capacity. Capacity must be
// positive; the orchestrator validates configuration before wiring links.
func NewLink[T any](name string, capacity int) *Link[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("logflume: link %q capacity must be positive, got %d", name, capacity))
	}
	l := &Link[T]{
		name:     name,
		capacity: capacity,
		items:    make(chan T, capacity),
		credits:  make(chan struct{}, capacity),
		done:     make(chan struct{}),
	}
	for i := 0; i < capacity; i++ {
		l.credits <- struct{}{}
	}
	return l
}

// Name returns the link's wiring name, used in logs and capacity errors.
func (l *Link[T]) Name() string { return l.name }

// Capacity returns the configured credit capacity.
func (l *Link[T]) Capacity() int { return l.capacity }

// Send delivers one item downstream, suspending while no credit is
// available. It returns ctx.Err() if the pipeline is cancelled during the
// wait and ErrLinkClosed once end-of-input has been marked.
func (l *Link[T]) Send(ctx context.Context, item T) error {
	select {
	case <-l.credits:
	case <-l.done:
		return flumeerrors.ErrLinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-l.done:
		return flumeerrors.ErrLinkClosed
	default:
	}
	// A consumed credit guarantees buffer room, so this never blocks.
	l.items <- item
	return nil
}

// Recv returns the next item in arrival order. The second return value is
// false once the link is closed and drained. After fully consuming an item
// the caller must return its credit via Release.
func (l *Link[T]) Recv(ctx context.Context) (T, bool, error) {
	var zero T
	select {
	case item, ok := <-l.items:
		if !ok {
			return zero, false, nil
		}
		return item, true, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// Release restores n credits after the consumer has finished with n items.
// Restoring more credits than were ever consumed breaches the buffered-count
// invariant and is reported as a capacity violation.
func (l *Link[T]) Release(n int) error {
	for i := 0; i < n; i++ {
		select {
		case l.credits <- struct{}{}:
		default:
			return flumeerrors.NewCapacityViolation(l.name,
				fmt.Errorf("credit release exceeds capacity %d", l.capacity))
		}
	}
	return nil
}

// Close marks end-of-input. Items already delivered remain readable; Recv
// reports done once they are drained. Close is idempotent.
func (l *Link[T]) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		close(l.items)
	})
}

// Buffered returns the number of delivered-but-unread items.
func (l *Link[T]) Buffered() int { return len(l.items) }

// FreeCredits returns the number of credits currently available to the
// producer.
func (l *Link[T]) FreeCredits() int { return len(l.credits) }
