// Package jsoncodec centralises JSON marshaling for batch serialization and
// report output. All callers go through this package so the codec can be
// swapped in one place.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

// std matches encoding/json semantics so output stays byte-stable if the
// codec is ever swapped back to the standard library.
var std = sonic.ConfigStd

// Marshal renders v as compact JSON.
func Marshal(v any) ([]byte, error) {
	return std.Marshal(v)
}

// MarshalIndent renders v as indented JSON for human-facing output such as
// the run report.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return std.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses compact or indented JSON into v.
func Unmarshal(data []byte, v any) error {
	return std.Unmarshal(data, v)
}

// Encode streams v as one JSON value followed by a newline.
func Encode(w io.Writer, v any) error {
	return std.NewEncoder(w).Encode(v)
}

// Decode reads one JSON value from r into v.
func Decode(r io.Reader, v any) error {
	return std.NewDecoder(r).Decode(v)
}
