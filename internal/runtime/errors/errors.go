// Package errors defines the pipeline error taxonomy and the sentinel
// configuration errors shared across logflume packages.
package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrSourceRequired    = sterrors.New("logflume: source is required")
	ErrSinkRequired      = sterrors.New("logflume: sink is required")
	ErrPredicateRequired = sterrors.New("logflume: filter predicate is required")
	ErrLinkClosed        = sterrors.New("logflume: link is closed")
	ErrAlreadyRun        = sterrors.New("logflume: pipeline has already run")
)

// Kind classifies a pipeline failure. Parse is the only recoverable kind and
// is absorbed by the formatter stage; every other kind aborts the run.
type Kind int

const (
	KindSource Kind = iota
	KindParse
	KindStage
	KindSink
	KindCapacityViolation
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindParse:
		return "parse"
	case KindStage:
		return "stage"
	case KindSink:
		return "sink"
	case KindCapacityViolation:
		return "capacity_violation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ProcessingError is the single aggregated error surfaced to callers. It
// names the component that failed and wraps the root cause.
type ProcessingError struct {
	Kind  Kind
	Stage string
	Cause error
}

func (e *ProcessingError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s error in %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Stage, e.Cause)
}

func (e *ProcessingError) Unwrap() error { return e.Cause }

// NewSourceError reports a fatal upstream read failure.
func NewSourceError(stage string, cause error) *ProcessingError {
	return &ProcessingError{Kind: KindSource, Stage: stage, Cause: cause}
}

// NewStageError reports a transform or predicate defect. These are assumed
// deterministic, so the pipeline aborts rather than retrying.
func NewStageError(stage string, cause error) *ProcessingError {
	return &ProcessingError{Kind: KindStage, Stage: stage, Cause: cause}
}

// NewSinkError reports a write or flush failure at the terminal sink.
func NewSinkError(stage string, cause error) *ProcessingError {
	return &ProcessingError{Kind: KindSink, Stage: stage, Cause: cause}
}

// NewCapacityViolation reports a breach of the buffered-count invariant.
// It indicates an internal defect and is never expected in correct operation.
func NewCapacityViolation(stage string, cause error) *ProcessingError {
	return &ProcessingError{Kind: KindCapacityViolation, Stage: stage, Cause: cause}
}

// AsProcessing extracts a ProcessingError from an error chain.
func AsProcessing(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if sterrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
