// Package logflume is a bounded-memory streaming pipeline that turns a
// continuous stream of textual log lines into compressed, structured output.
// Lines flow through a fixed chain of stages (filter, formatter, batcher,
// rate governor, progress tracker) connected by credit-gated links, so a
// slow terminal sink naturally throttles the original source and total
// buffered work never grows with input size.
//
// A minimal run wires a Source and a Sink into a Pipeline and calls Run:
//
//	cfg := &logflume.Config{
//		BatchSize:              100,
//		ItemsPerSecond:         5000,
//		PerStageBufferCapacity: 16,
//		ShutdownTimeout:        5 * time.Second,
//	}
//	p, err := logflume.New(cfg, logger, logflume.Dependencies{
//		Source:    logflume.NewLinesSource(file),
//		Sink:      logflume.NewJSONGzipSink(out),
//		Predicate: logflume.LevelPredicate("ERROR"),
//	})
//	if err != nil {
//		// invalid config or missing collaborators
//	}
//	report, err := p.Run(ctx)
//
// Run returns a single completion report carrying item counts, the
// malformed-line count, and at most one aggregated error naming the failing
// stage and root cause. Malformed input lines never abort a run; they are
// counted and skipped.
//
// # Flow control
//
// Every stage boundary carries credits: the downstream side advertises free
// capacity, the upstream side consumes one credit per delivered item and
// suspends at zero, and credits return only after the consumer finishes
// with an item. Cancellation is a separate signal observed at every
// suspension point.
//
// # Resource monitor
//
// When memory watermarks are configured, an auxiliary monitor samples the
// process heap and pauses intake at the source boundary above the high
// watermark, resuming below the low one. The gap between watermarks is the
// hysteresis that prevents oscillation.
//
// # Transports
//
// The transport package bridges Watermill Pub/Sub systems: a Subscriber can
// feed the pipeline lines and a Publisher can receive serialized batches,
// which connects the pipeline to Kafka, NATS, AMQP, or in-memory channels
// without changing any stage.
package logflume
