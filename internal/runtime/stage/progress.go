package stage

import (
	"context"

	"github.com/logflume/logflume/internal/runtime/record"
)

// ReportFunc receives progress notifications on a side channel separate from
// the data stream. percent is a multiple of 10 in [0, 100].
type ReportFunc func(percent int, count uint64)

// Progress is a pass-through stage that counts the records inside each batch
// it forwards, so it measures items that survived upstream filtering rather
// than raw input. Given a known total it reports each newly reached decile
// exactly once, strictly increasing; with an unknown total it only counts.
type Progress struct {
	name   string
	total  uint64
	report ReportFunc

	count      uint64
	lastDecile int
}

// NewProgress creates a progress tracker. total == 0 selects count-only
// mode; report may be nil, which also disables reporting.
func NewProgress(name string, total uint64, report ReportFunc) *Progress {
	return &Progress{name: name, total: total, report: report, lastDecile: -1}
}

func (p *Progress) Name() string { return p.name }

func (p *Progress) Process(ctx context.Context, batch record.Batch, emit Emit[record.Batch]) error {
	// Count record by record so no decile crossed inside a batch is skipped.
	for range batch.Records {
		p.count++
		p.observe()
	}
	return emit(ctx, batch)
}

func (p *Progress) Flush(context.Context, Emit[record.Batch]) error { return nil }

func (p *Progress) observe() {
	if p.total == 0 || p.report == nil {
		return
	}
	decile := int(p.count * 10 / p.total)
	if decile > 10 {
		decile = 10
	}
	if decile <= p.lastDecile {
		return
	}
	// Arriving items can cross several deciles at once only when total < 10;
	// each decile still gets its own report, in order.
	for d := p.lastDecile + 1; d <= decile; d++ {
		p.report(d*10, p.count)
	}
	p.lastDecile = decile
}

// Count returns how many records have passed through so far.
func (p *Progress) Count() uint64 { return p.count }
