package stage

import (
	"context"
	"fmt"
	"strings"

	flumeerrors "github.com/logflume/logflume/internal/runtime/errors"
)

// Predicate decides whether a raw line survives the filter.
type Predicate func(line string) bool

// Filter passes lines matching its predicate unchanged and drops the rest.
// It is stateless and buffers nothing, so backpressure passes straight
// through. A panicking predicate indicates a programming defect, not bad
// data; it is surfaced as a fatal stage error rather than retried.
type Filter struct {
	name string
	pred Predicate
}

// NewFilter creates a filter stage. The predicate must be deterministic and
// side-effect-free.
func NewFilter(name string, pred Predicate) *Filter {
	if pred == nil {
		panic(flumeerrors.ErrPredicateRequired)
	}
	return &Filter{name: name, pred: pred}
}

func (f *Filter) Name() string { return f.name }

func (f *Filter) Process(ctx context.Context, line string, emit Emit[string]) (err error) {
	keep, perr := f.eval(line)
	if perr != nil {
		return perr
	}
	if !keep {
		return nil
	}
	return emit(ctx, line)
}

func (f *Filter) Flush(context.Context, Emit[string]) error { return nil }

func (f *Filter) eval(line string) (keep bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = flumeerrors.NewStageError(f.name, fmt.Errorf("predicate panic: %v", r))
		}
	}()
	return f.pred(line), nil
}

// LevelPredicate returns a predicate keeping lines tagged with the given
// level, e.g. "[ERROR]". It matches on the raw text so the filter can run
// ahead of parsing.
func LevelPredicate(level string) Predicate {
	marker := "] [" + level + "] "
	return func(line string) bool {
		return strings.Contains(line, marker)
	}
}
