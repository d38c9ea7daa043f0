// Package pipeline implements the orchestrator: it wires Source through the
// stage chain into Sink over credit links, pumps every segment on its own
// goroutine, and owns run lifecycle, cancellation, and error aggregation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/logflume/logflume/internal/runtime/config"
	flumeerrors "github.com/logflume/logflume/internal/runtime/errors"
	"github.com/logflume/logflume/internal/runtime/flow"
	"github.com/logflume/logflume/internal/runtime/ids"
	"github.com/logflume/logflume/internal/runtime/jsoncodec"
	"github.com/logflume/logflume/internal/runtime/logging"
	"github.com/logflume/logflume/internal/runtime/metrics"
	"github.com/logflume/logflume/internal/runtime/monitor"
	"github.com/logflume/logflume/internal/runtime/record"
	"github.com/logflume/logflume/internal/runtime/sink"
	"github.com/logflume/logflume/internal/runtime/source"
	"github.com/logflume/logflume/internal/runtime/stage"
)

// State is the orchestrator lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateFailing
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateFailing:
		return "failing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Report is the single completion summary of a run.
type Report struct {
	RunID          string `json:"run_id"`
	ItemsIn        uint64 `json:"items_in"`
	ItemsOut       uint64 `json:"items_out"`
	MalformedCount uint64 `json:"malformed_count"`
	BatchesEmitted uint64 `json:"batches_emitted"`
	Err            error  `json:"-"`
}

// JSON renders the report as indented JSON for human-facing output.
func (r Report) JSON() ([]byte, error) {
	return jsoncodec.MarshalIndent(r, "", "  ")
}

// Dependencies holds the collaborators a run needs. Source and Sink are
// required; everything else has a default.
type Dependencies struct {
	Source source.Source
	Sink   sink.Sink

	// Predicate drives the filter stage. Nil keeps every line.
	Predicate stage.Predicate

	// Progress receives decile notifications on a side channel. Nil
	// disables reporting even when TotalExpectedItems is set.
	Progress stage.ReportFunc

	// Clock drives the rate governor and resource monitor. Nil selects the
	// wall clock; tests inject a mock.
	Clock clock.Clock

	// MemorySampler overrides the resource monitor's heap sampler.
	MemorySampler monitor.Sampler

	// Registerer receives the run's Prometheus collectors when metrics are
	// enabled. Nil uses the default registerer.
	Registerer prometheus.Registerer
}

// Pipeline executes one Source → stages → Sink run. A Pipeline is
// single-use: construct, Run once, read the report.
type Pipeline struct {
	cfg    *config.Config
	logger logging.ServiceLogger
	deps   Dependencies

	runID string
	state atomic.Int32
	ran   atomic.Bool

	metrics *metrics.PipelineMetrics

	itemsIn  atomic.Uint64
	itemsOut atomic.Uint64
	batches  atomic.Uint64

	failOnce sync.Once
	errMu    sync.Mutex
	firstErr error
}

// New validates the configuration and constructs an idle pipeline.
func New(cfg *config.Config, logger logging.ServiceLogger, deps Dependencies) (*Pipeline, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if deps.Source == nil {
		return nil, flumeerrors.ErrSourceRequired
	}
	if deps.Sink == nil {
		return nil, flumeerrors.ErrSinkRequired
	}
	if logger == nil {
		logger = logging.Nop()
	}

	p := &Pipeline{
		cfg:   cfg,
		deps:  deps,
		runID: ids.NewRunID(),
	}
	p.logger = logger.With(logging.LogFields{"run_id": p.runID})
	p.state.Store(int32(StateIdle))

	if cfg.MetricsEnabled {
		p.metrics = metrics.NewPipelineMetrics(deps.Registerer)
		if err := p.metrics.Register(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RunID returns the ULID identifying this run in logs and metrics.
func (p *Pipeline) RunID() string { return p.runID }

// State returns the current lifecycle state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

func (p *Pipeline) transition(to State) {
	from := State(p.state.Swap(int32(to)))
	if from != to {
		p.logger.Debug("state transition", logging.LogFields{
			"from": from.String(),
			"to":   to.String(),
		})
	}
}

// transitionFrom is the guarded variant: it only fires while the pipeline is
// still in the expected state, so a concurrent failure is never overwritten.
func (p *Pipeline) transitionFrom(from, to State) bool {
	if !p.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	p.logger.Debug("state transition", logging.LogFields{
		"from": from.String(),
		"to":   to.String(),
	})
	return true
}

// fail records the first fatal error; later errors during teardown are
// logged but never replace it.
func (p *Pipeline) fail(err error, cancel context.CancelFunc) {
	recorded := false
	p.failOnce.Do(func() {
		p.errMu.Lock()
		p.firstErr = err
		p.errMu.Unlock()
		recorded = true
		p.transition(StateFailing)
		cancel()
	})
	if !recorded {
		p.logger.Error("error during teardown", err, nil)
	}
}

func (p *Pipeline) runErr() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.firstErr
}

// Run executes the pipeline until end-of-input, failure, or cancellation of
// ctx. It returns the completion report; Report.Err (also returned) is the
// single aggregated error naming the failing stage and root cause.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	if !p.ran.CompareAndSwap(false, true) {
		return Report{RunID: p.runID, Err: flumeerrors.ErrAlreadyRun}, flumeerrors.ErrAlreadyRun
	}

	tracer := otel.Tracer("github.com/logflume/logflume")
	ctx, span := tracer.Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("run_id", p.runID)))
	defer span.End()

	p.transition(StateRunning)
	p.logger.Info("pipeline started", logging.LogFields{
		"batch_size":       p.cfg.BatchSize,
		"items_per_second": p.cfg.ItemsPerSecond,
		"buffer_capacity":  p.cfg.PerStageBufferCapacity,
	})

	metricsSrv := p.serveMetrics()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	capacity := p.cfg.PerStageBufferCapacity
	filterIn := flow.NewLink[string]("filter_in", capacity)
	formatterIn := flow.NewLink[string]("formatter_in", capacity)
	batcherIn := flow.NewLink[record.Record]("batcher_in", capacity)
	governorIn := flow.NewLink[record.Batch]("governor_in", capacity)
	progressIn := flow.NewLink[record.Batch]("progress_in", capacity)
	sinkIn := flow.NewLink[record.Batch]("sink_in", capacity)

	predicate := p.deps.Predicate
	if predicate == nil {
		predicate = func(string) bool { return true }
	}
	filter := stage.NewFilter("filter", predicate)
	formatter := stage.NewFormatter("formatter")
	batcher := stage.NewBatcher("batcher", p.cfg.BatchSize)
	governor := stage.NewGovernor("governor", p.cfg.ItemsPerSecond, p.deps.Clock)
	progress := stage.NewProgress("progress", uint64(p.cfg.TotalExpectedItems), p.deps.Progress)

	gate := flow.NewGate()
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	var monitorDone chan struct{}
	if p.cfg.MonitorEnabled() {
		mon := monitor.New(gate, p.cfg.MemoryHighWatermarkBytes, p.cfg.MemoryLowWatermarkBytes, monitor.Options{
			Sampler:  p.deps.MemorySampler,
			Clock:    p.deps.Clock,
			Logger:   p.logger,
			Interval: p.cfg.MonitorInterval,
			OnTransition: func(paused bool) {
				if p.metrics != nil {
					p.metrics.SetMemoryPaused(p.runID, paused)
				}
			},
		})
		monitorDone = make(chan struct{})
		go func() {
			defer close(monitorDone)
			mon.Run(monitorCtx)
		}()
	}

	var wg sync.WaitGroup
	start := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				if runCtx.Err() != nil && isCancellation(err) {
					// Unwinding from cancellation, not a new failure.
					return
				}
				p.fail(err, cancel)
			}
		}()
	}

	start(func() error { return p.pumpSource(runCtx, gate, filterIn) })
	start(func() error {
		return wrapStage("filter", stage.Run[string, string](runCtx, filter, filterIn, formatterIn))
	})
	start(func() error {
		return wrapStage("formatter", stage.Run[string, record.Record](runCtx, formatter, formatterIn, batcherIn))
	})
	start(func() error {
		return wrapStage("batcher", stage.Run[record.Record, record.Batch](runCtx, batcher, batcherIn, governorIn))
	})
	start(func() error {
		return wrapStage("governor", stage.Run[record.Batch, record.Batch](runCtx, governor, governorIn, progressIn))
	})
	start(func() error {
		return wrapStage("progress", stage.Run[record.Batch, record.Batch](runCtx, progress, progressIn, sinkIn))
	})
	start(func() error { return p.pumpSink(runCtx, sinkIn) })

	p.awaitWorkers(runCtx, &wg)

	// Teardown in reverse wiring order: stop intake, then the monitor, then
	// flush-close the sink, then release the metrics port.
	stopMonitor()
	if monitorDone != nil {
		<-monitorDone
	}
	if err := p.deps.Sink.Close(); err != nil {
		p.fail(flumeerrors.NewSinkError("sink", err), cancel)
	}
	p.stopMetricsServer(metricsSrv)

	report := Report{
		RunID:          p.runID,
		ItemsIn:        p.itemsIn.Load(),
		ItemsOut:       p.itemsOut.Load(),
		MalformedCount: formatter.MalformedCount(),
		BatchesEmitted: p.batches.Load(),
		Err:            p.runErr(),
	}
	if p.metrics != nil {
		p.metrics.AddMalformed(p.runID, int(report.MalformedCount))
	}

	switch {
	case report.Err != nil:
		p.transition(StateFailed)
		span.RecordError(report.Err)
		p.logger.Error("pipeline failed", report.Err, logging.LogFields{
			"items_in":  report.ItemsIn,
			"items_out": report.ItemsOut,
		})
	case ctx.Err() != nil:
		p.transition(StateCancelled)
		report.Err = ctx.Err()
		p.logger.Info("pipeline cancelled", logging.LogFields{
			"items_in":  report.ItemsIn,
			"items_out": report.ItemsOut,
		})
	default:
		p.transition(StateCompleted)
		p.logger.Info("pipeline completed", logging.LogFields{
			"items_in":        report.ItemsIn,
			"items_out":       report.ItemsOut,
			"malformed_count": report.MalformedCount,
			"batches_emitted": report.BatchesEmitted,
		})
	}
	return report, report.Err
}

// pumpSource pulls raw lines through the intake gate into the first link.
func (p *Pipeline) pumpSource(ctx context.Context, gate *flow.Gate, out *flow.Link[string]) error {
	defer out.Close()
	for {
		if err := gate.Wait(ctx); err != nil {
			return err
		}
		line, ok, err := p.deps.Source.Next(ctx)
		if err != nil {
			if isCancellation(err) {
				return err
			}
			return flumeerrors.NewSourceError("source", err)
		}
		if !ok {
			// End-of-input begins the drain unless the run is already
			// failing.
			p.transitionFrom(StateRunning, StateDraining)
			return nil
		}
		p.itemsIn.Add(1)
		if p.metrics != nil {
			p.metrics.AddItemsIn(p.runID, 1)
		}
		if err := out.Send(ctx, line); err != nil {
			return err
		}
	}
}

// pumpSink delivers batches to the terminal sink in arrival order.
func (p *Pipeline) pumpSink(ctx context.Context, in *flow.Link[record.Batch]) error {
	for {
		batch, ok, err := in.Recv(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := p.deps.Sink.Accept(ctx, batch); err != nil {
			if isCancellation(err) {
				return err
			}
			return flumeerrors.NewSinkError("sink", err)
		}
		p.itemsOut.Add(uint64(batch.Len()))
		p.batches.Add(1)
		if p.metrics != nil {
			p.metrics.AddItemsOut(p.runID, batch.Len())
			p.metrics.IncBatches(p.runID)
			p.metrics.SetBuffered(p.runID, in.Name(), in.Buffered())
		}
		if err := in.Release(1); err != nil {
			return err
		}
	}
}

// awaitWorkers waits for every pump to acknowledge shutdown. The shutdown
// timeout only bounds the wait once the run context is cancelled; a healthy
// run may legitimately take longer than the timeout.
func (p *Pipeline) awaitWorkers(runCtx context.Context, wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-runCtx.Done():
	}

	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownTimeout):
		p.logger.Error("stage shutdown timed out", nil, logging.LogFields{
			"timeout": p.cfg.ShutdownTimeout.String(),
		})
	}
}

// wrapStage attributes a pump error to its stage unless it already carries
// attribution.
func wrapStage(name string, err error) error {
	if err == nil {
		return err
	}
	if _, ok := flumeerrors.AsProcessing(err); ok {
		return err
	}
	if isCancellation(err) {
		return err
	}
	return flumeerrors.NewStageError(name, err)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// serveMetrics exposes the Prometheus endpoint when configured. The returned
// server is shut down during teardown so the port is free for the next run.
func (p *Pipeline) serveMetrics() *http.Server {
	if p.metrics == nil || p.cfg.MetricsPort <= 0 {
		return nil
	}
	addr := fmt.Sprintf(":%d", p.cfg.MetricsPort)
	srv := &http.Server{Addr: addr, Handler: promhttp.Handler()}
	p.logger.Info("serving metrics", logging.LogFields{"address": addr})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("metrics server stopped", err, logging.LogFields{"address": addr})
		}
	}()
	return srv
}

func (p *Pipeline) stopMetricsServer(srv *http.Server) {
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), p.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		p.logger.Error("metrics server shutdown", err, logging.LogFields{"address": srv.Addr})
	}
}
