package logflume

import (
	"io"

	configpkg "github.com/logflume/logflume/internal/runtime/config"
	errspkg "github.com/logflume/logflume/internal/runtime/errors"
	idspkg "github.com/logflume/logflume/internal/runtime/ids"
	loggingpkg "github.com/logflume/logflume/internal/runtime/logging"
	pipelinepkg "github.com/logflume/logflume/internal/runtime/pipeline"
	recordpkg "github.com/logflume/logflume/internal/runtime/record"
	sinkpkg "github.com/logflume/logflume/internal/runtime/sink"
	sourcepkg "github.com/logflume/logflume/internal/runtime/source"
	stagepkg "github.com/logflume/logflume/internal/runtime/stage"
)

type (
	Config       = configpkg.Config
	Pipeline     = pipelinepkg.Pipeline
	Dependencies = pipelinepkg.Dependencies
	Report       = pipelinepkg.Report
	State        = pipelinepkg.State

	Record = recordpkg.Record
	Batch  = recordpkg.Batch

	Source = sourcepkg.Source
	Sink   = sinkpkg.Sink

	Predicate  = stagepkg.Predicate
	ReportFunc = stagepkg.ReportFunc

	LogFields       = loggingpkg.LogFields
	ServiceLogger   = loggingpkg.ServiceLogger
	ProcessingError = errspkg.ProcessingError
	ErrorKind       = errspkg.Kind
)

const (
	StateIdle      = pipelinepkg.StateIdle
	StateRunning   = pipelinepkg.StateRunning
	StateDraining  = pipelinepkg.StateDraining
	StateFailing   = pipelinepkg.StateFailing
	StateCompleted = pipelinepkg.StateCompleted
	StateFailed    = pipelinepkg.StateFailed
	StateCancelled = pipelinepkg.StateCancelled

	KindSource            = errspkg.KindSource
	KindParse             = errspkg.KindParse
	KindStage             = errspkg.KindStage
	KindSink              = errspkg.KindSink
	KindCapacityViolation = errspkg.KindCapacityViolation
)

var (
	New            = pipelinepkg.New
	ConfigFromEnv  = configpkg.FromEnv
	ValidateConfig = configpkg.ValidateConfig
	NewRunID       = idspkg.NewRunID

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NopLogger            = loggingpkg.Nop

	LevelPredicate = stagepkg.LevelPredicate
	ParseLine      = recordpkg.ParseLine

	NewSliceSource = sourcepkg.NewSlice
	NewCollectSink = sinkpkg.NewCollect

	AsProcessingError = errspkg.AsProcessing
)

// NewLinesSource adapts a newline-delimited reader into a pipeline Source.
func NewLinesSource(r io.Reader) Source { return sourcepkg.NewLines(r) }

// NewJSONGzipSink writes each batch as a JSON array through gzip.
func NewJSONGzipSink(w io.Writer) *sinkpkg.JSONGzip { return sinkpkg.NewJSONGzip(w) }
