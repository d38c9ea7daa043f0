package errors

import (
	sterrors "errors"
	"strings"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindSource:            "source",
		KindParse:             "parse",
		KindStage:             "stage",
		KindSink:              "sink",
		KindCapacityViolation: "capacity_violation",
		Kind(42):              "kind(42)",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}

func TestProcessingErrorMessage(t *testing.T) {
	cause := sterrors.New("disk full")
	err := NewSinkError("gzip_sink", cause)

	if !strings.Contains(err.Error(), "gzip_sink") {
		t.Errorf("error should name the failing stage, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error should include the cause, got %q", err.Error())
	}
	if !sterrors.Is(err, cause) {
		t.Error("ProcessingError should unwrap to its cause")
	}
}

func TestProcessingErrorWithoutCause(t *testing.T) {
	err := &ProcessingError{Kind: KindStage, Stage: "filter"}
	if got := err.Error(); got != "stage error in filter" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestAsProcessing(t *testing.T) {
	inner := NewSourceError("line_source", sterrors.New("read: connection reset"))
	wrapped := sterrors.Join(sterrors.New("outer"), inner)

	pe, ok := AsProcessing(wrapped)
	if !ok {
		t.Fatal("expected to find a ProcessingError in the chain")
	}
	if pe.Kind != KindSource || pe.Stage != "line_source" {
		t.Errorf("unexpected extraction: %+v", pe)
	}

	if _, ok := AsProcessing(sterrors.New("plain")); ok {
		t.Error("plain errors must not match")
	}
}
