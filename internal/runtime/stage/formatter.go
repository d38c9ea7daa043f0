package stage

import (
	"context"
	"sync/atomic"

	"github.com/logflume/logflume/internal/runtime/record"
)

// Formatter parses raw lines into structured records. A line that does not
// match the `[TS] [LEVEL] MESSAGE` grammar never aborts the run: the stage
// counts it, emits nothing, and moves on. The malformed count surfaces in
// the completion report only.
type Formatter struct {
	name      string
	malformed atomic.Uint64
}

// NewFormatter creates a formatter stage.
func NewFormatter(name string) *Formatter {
	return &Formatter{name: name}
}

func (f *Formatter) Name() string { return f.name }

func (f *Formatter) Process(ctx context.Context, line string, emit Emit[record.Record]) error {
	rec, err := record.ParseLine(line)
	if err != nil {
		f.malformed.Add(1)
		return nil
	}
	return emit(ctx, rec)
}

func (f *Formatter) Flush(context.Context, Emit[record.Record]) error { return nil }

// MalformedCount returns how many lines failed to parse so far. Safe to call
// from the orchestrator while the stage is running.
func (f *Formatter) MalformedCount() uint64 { return f.malformed.Load() }
