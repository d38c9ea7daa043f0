package stage

import (
	"context"

	"github.com/logflume/logflume/internal/runtime/record"
)

// Batcher groups incoming records into fixed-size batches. It emits as soon
// as the buffer reaches batchSize, so it never holds more than one pending
// batch; the flush step emits one final partial batch if anything remains.
// Every record that enters the batcher leaves it in exactly one batch, in
// arrival order.
type Batcher struct {
	name      string
	batchSize int
	buf       []record.Record
}

// NewBatcher creates a batcher stage. batchSize must be positive (validated
// by config before wiring).
func NewBatcher(name string, batchSize int) *Batcher {
	return &Batcher{
		name:      name,
		batchSize: batchSize,
		buf:       make([]record.Record, 0, batchSize),
	}
}

func (b *Batcher) Name() string { return b.name }

func (b *Batcher) Process(ctx context.Context, rec record.Record, emit Emit[record.Batch]) error {
	b.buf = append(b.buf, rec)
	if len(b.buf) < b.batchSize {
		return nil
	}
	return b.emitBuffered(ctx, emit)
}

// Flush emits the final partial batch, or nothing when the buffer is empty.
func (b *Batcher) Flush(ctx context.Context, emit Emit[record.Batch]) error {
	if len(b.buf) == 0 {
		return nil
	}
	return b.emitBuffered(ctx, emit)
}

func (b *Batcher) emitBuffered(ctx context.Context, emit Emit[record.Batch]) error {
	// The emitted batch takes ownership of the slice; a fresh buffer keeps
	// the never-mutate-after-emission guarantee.
	batch := record.Batch{Records: b.buf}
	b.buf = make([]record.Record, 0, b.batchSize)
	return emit(ctx, batch)
}

// Buffered returns the number of records awaiting the next emission.
func (b *Batcher) Buffered() int { return len(b.buf) }
