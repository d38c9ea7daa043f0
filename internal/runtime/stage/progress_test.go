package stage

import (
	"context"
	"testing"

	"github.com/logflume/logflume/internal/runtime/record"
)

type progressLog struct {
	percents []int
	counts   []uint64
}

func (p *progressLog) report(percent int, count uint64) {
	p.percents = append(p.percents, percent)
	p.counts = append(p.counts, count)
}

func TestProgressDecilesStrictlyIncreaseOnce(t *testing.T) {
	ctx := context.Background()
	var log progressLog
	p := NewProgress("progress", 20, log.report)
	emit, _ := collect[record.Batch](t)

	// Deliver 20 records one at a time; every decile 0..10 appears once.
	for i := 0; i < 20; i++ {
		if err := p.Process(ctx, batchOf(1), emit); err != nil {
			t.Fatal(err)
		}
	}

	if len(log.percents) != 11 {
		t.Fatalf("expected 11 decile reports, got %d: %v", len(log.percents), log.percents)
	}
	for i, pct := range log.percents {
		if pct != i*10 {
			t.Fatalf("report %d is %d%%, want %d%%", i, pct, i*10)
		}
	}
}

func TestProgressScenarioTwentyFiveExpectedTenSurvivors(t *testing.T) {
	// 10 post-filter records against totalExpectedItems=25: deciles flip at
	// counts 1, 3, 5, 8, 10 per floor(count*10/25).
	ctx := context.Background()
	var log progressLog
	p := NewProgress("progress", 25, log.report)
	emit, _ := collect[record.Batch](t)

	for i := 0; i < 10; i++ {
		if err := p.Process(ctx, batchOf(1), emit); err != nil {
			t.Fatal(err)
		}
	}

	wantCounts := []uint64{1, 3, 5, 8, 10}
	wantPercents := []int{0, 10, 20, 30, 40}
	if len(log.counts) != len(wantCounts) {
		t.Fatalf("got reports at counts %v, want %v", log.counts, wantCounts)
	}
	for i := range wantCounts {
		if log.counts[i] != wantCounts[i] || log.percents[i] != wantPercents[i] {
			t.Errorf("report %d = (%d%%, %d), want (%d%%, %d)",
				i, log.percents[i], log.counts[i], wantPercents[i], wantCounts[i])
		}
	}
}

func TestProgressCountsRecordsInsideBatches(t *testing.T) {
	ctx := context.Background()
	var log progressLog
	p := NewProgress("progress", 25, log.report)
	emit, got := collect[record.Batch](t)

	// Same scenario delivered as the batcher would: 4, 4, 2.
	for _, n := range []int{4, 4, 2} {
		if err := p.Process(ctx, batchOf(n), emit); err != nil {
			t.Fatal(err)
		}
	}

	if p.Count() != 10 {
		t.Fatalf("Count = %d, want 10", p.Count())
	}
	if len(*got) != 3 {
		t.Fatalf("pass-through must forward every batch, got %d", len(*got))
	}
	// Decile boundaries land mid-batch and must still be caught.
	wantPercents := []int{0, 10, 20, 30, 40}
	if len(log.percents) != len(wantPercents) {
		t.Fatalf("got %v, want %v", log.percents, wantPercents)
	}
	for i := range wantPercents {
		if log.percents[i] != wantPercents[i] {
			t.Errorf("report %d = %d%%, want %d%%", i, log.percents[i], wantPercents[i])
		}
	}
}

func TestProgressNoDuplicateWithinDecile(t *testing.T) {
	ctx := context.Background()
	var log progressLog
	p := NewProgress("progress", 1000, log.report)
	emit, _ := collect[record.Batch](t)

	for i := 0; i < 50; i++ {
		if err := p.Process(ctx, batchOf(1), emit); err != nil {
			t.Fatal(err)
		}
	}

	seen := map[int]int{}
	for _, pct := range log.percents {
		seen[pct]++
		if seen[pct] > 1 {
			t.Fatalf("decile %d%% reported twice: %v", pct, log.percents)
		}
	}
}

func TestProgressCountOnlyModeWithUnknownTotal(t *testing.T) {
	ctx := context.Background()
	var log progressLog
	p := NewProgress("progress", 0, log.report)
	emit, _ := collect[record.Batch](t)

	for i := 0; i < 30; i++ {
		if err := p.Process(ctx, batchOf(1), emit); err != nil {
			t.Fatal(err)
		}
	}

	if len(log.percents) != 0 {
		t.Errorf("unknown total must emit no percentage reports, got %v", log.percents)
	}
	if p.Count() != 30 {
		t.Errorf("Count = %d, want 30", p.Count())
	}
}

func TestProgressCapsAtHundredPercent(t *testing.T) {
	ctx := context.Background()
	var log progressLog
	p := NewProgress("progress", 5, log.report)
	emit, _ := collect[record.Batch](t)

	// More records than expected: reports must stop at 100%.
	for i := 0; i < 8; i++ {
		if err := p.Process(ctx, batchOf(1), emit); err != nil {
			t.Fatal(err)
		}
	}

	last := log.percents[len(log.percents)-1]
	if last != 100 {
		t.Errorf("final report = %d%%, want 100%%", last)
	}
	for _, pct := range log.percents {
		if pct > 100 {
			t.Errorf("report above 100%%: %d", pct)
		}
	}
}
