// Package source adapts external raw-record producers to the pipeline's
// pull contract: produce the next raw chunk or report end-of-input.
package source

import (
	"bufio"
	"context"
	"io"
)

// Source yields raw lines. Next returns (line, true, nil) per line,
// (_, false, nil) at end-of-input, and a non-nil error on read failure,
// which the orchestrator treats as fatal.
type Source interface {
	Next(ctx context.Context) (string, bool, error)
}

// Lines reads newline-delimited text from an io.Reader. Not safe for
// concurrent use; the pipeline's source pump is its only caller.
type Lines struct {
	scanner *bufio.Scanner
}

// NewLines wraps a reader. Lines longer than bufio's default limit are a
// source error, same as any other read failure.
func NewLines(r io.Reader) *Lines {
	return &Lines{scanner: bufio.NewScanner(r)}
}

func (l *Lines) Next(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if l.scanner.Scan() {
		return l.scanner.Text(), true, nil
	}
	if err := l.scanner.Err(); err != nil {
		return "", false, err
	}
	return "", false, nil
}

// Slice serves a fixed set of lines; handy in tests and examples.
type Slice struct {
	lines []string
	pos   int
}

// NewSlice creates a source over the given lines.
func NewSlice(lines []string) *Slice {
	return &Slice{lines: lines}
}

func (s *Slice) Next(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if s.pos >= len(s.lines) {
		return "", false, nil
	}
	line := s.lines[s.pos]
	s.pos++
	return line, true, nil
}
