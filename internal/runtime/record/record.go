// Package record defines the structured log record and batch types flowing
// through the pipeline, plus the line grammar parser used by the formatter
// stage.
package record

import (
	"errors"
	"strings"
)

// Record is one structured log entry. Records are immutable once produced;
// stages hand them downstream without copying or mutating.
type Record struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// Batch is a bounded, ordered group of records emitted as one downstream
// unit. A batch is never empty and is never mutated after emission.
type Batch struct {
	Records []Record `json:"records"`
}

// Len returns the number of records in the batch.
func (b Batch) Len() int { return len(b.Records) }

// ErrMalformed reports a line that does not match the expected grammar.
var ErrMalformed = errors.New("line does not match [TS] [LEVEL] MESSAGE grammar")

var knownLevels = map[string]struct{}{
	"INFO":  {},
	"WARN":  {},
	"ERROR": {},
	"DEBUG": {},
}

// ParseLine parses a raw line of the form
//
//	[YYYY-MM-DD HH:MM:SS] [LEVEL] Message
//
// with LEVEL one of INFO, WARN, ERROR, DEBUG. It returns ErrMalformed for
// anything else; the caller decides whether that is fatal.
func ParseLine(line string) (Record, error) {
	rest, ok := strings.CutPrefix(line, "[")
	if !ok {
		return Record{}, ErrMalformed
	}
	ts, rest, ok := strings.Cut(rest, "] [")
	if !ok || !validTimestamp(ts) {
		return Record{}, ErrMalformed
	}
	level, msg, ok := strings.Cut(rest, "] ")
	if !ok {
		return Record{}, ErrMalformed
	}
	if _, known := knownLevels[level]; !known {
		return Record{}, ErrMalformed
	}
	return Record{Timestamp: ts, Level: level, Message: msg}, nil
}

// validTimestamp checks the fixed-width YYYY-MM-DD HH:MM:SS shape without
// validating calendar semantics; content beyond shape is out of scope.
func validTimestamp(ts string) bool {
	if len(ts) != 19 {
		return false
	}
	for i, r := range ts {
		switch i {
		case 4, 7:
			if r != '-' {
				return false
			}
		case 10:
			if r != ' ' {
				return false
			}
		case 13, 16:
			if r != ':' {
				return false
			}
		default:
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
