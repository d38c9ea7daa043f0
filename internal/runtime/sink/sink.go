// Package sink adapts external byte consumers to the pipeline's terminal
// contract: accept one serialized batch, report failures, flush on close.
package sink

import (
	"context"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/logflume/logflume/internal/runtime/jsoncodec"
	"github.com/logflume/logflume/internal/runtime/record"
)

// Sink consumes batches in arrival order. Accept returning an error is
// fatal for the run; Close guarantees all buffered bytes are flushed or
// reports why not.
type Sink interface {
	Accept(ctx context.Context, batch record.Batch) error
	Close() error
}

// JSONGzip serializes each batch as an ordered JSON array of structured
// records and writes it through a gzip stream. Output written before a
// failure is a truncated artifact, not a valid archive.
type JSONGzip struct {
	gz    *gzip.Writer
	bytes int64

	closeOnce sync.Once
	closeErr  error
}

// NewJSONGzip creates a compressing sink over w. The caller keeps ownership
// of w and closes it after the sink.
func NewJSONGzip(w io.Writer) *JSONGzip {
	return &JSONGzip{gz: gzip.NewWriter(w)}
}

func (s *JSONGzip) Accept(ctx context.Context, batch record.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := jsoncodec.Marshal(batch.Records)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	n, err := s.gz.Write(data)
	s.bytes += int64(n)
	return err
}

// Close flushes the compressor. Idempotent; the first result wins.
func (s *JSONGzip) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.gz.Close()
	})
	return s.closeErr
}

// BytesWritten returns how many uncompressed payload bytes were accepted.
func (s *JSONGzip) BytesWritten() int64 { return s.bytes }

// Collect buffers batches in memory. Test and example helper.
type Collect struct {
	mu      sync.Mutex
	batches []record.Batch
	closed  bool
}

// NewCollect creates an empty collecting sink.
func NewCollect() *Collect { return &Collect{} }

func (c *Collect) Accept(ctx context.Context, batch record.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, batch)
	return nil
}

func (c *Collect) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Batches returns a copy of everything accepted so far.
func (c *Collect) Batches() []record.Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]record.Batch, len(c.batches))
	copy(out, c.batches)
	return out
}

// Closed reports whether Close has been called.
func (c *Collect) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
