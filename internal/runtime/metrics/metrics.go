// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks per-run throughput statistics. Counters are labeled
// by run ID so overlapping runs stay distinguishable.
type PipelineMetrics struct {
	mu sync.Mutex

	itemsIn       *prometheus.CounterVec
	itemsOut      *prometheus.CounterVec
	malformed     *prometheus.CounterVec
	batches       *prometheus.CounterVec
	bufferedItems *prometheus.GaugeVec
	memoryPaused  *prometheus.GaugeVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logflume",
			Subsystem: "pipeline",
			Name:      name,
			Help:      help,
		},
		[]string{"run_id"},
	)
}

func newGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "logflume",
			Subsystem: "pipeline",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewPipelineMetrics creates the pipeline metric set. A nil registerer uses
// the default one.
func NewPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PipelineMetrics{
		registerer:    registerer,
		itemsIn:       newCounterVec("items_in_total", "Raw lines pulled from the source"),
		itemsOut:      newCounterVec("items_out_total", "Records delivered to the sink inside batches"),
		malformed:     newCounterVec("malformed_total", "Lines skipped because they did not parse"),
		batches:       newCounterVec("batches_total", "Batches delivered to the sink"),
		bufferedItems: newGaugeVec("buffered_items", "Items buffered on a stage link", []string{"run_id", "link"}),
		memoryPaused:  newGaugeVec("memory_paused", "1 while the resource monitor holds intake paused", []string{"run_id"}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *PipelineMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.itemsIn, m.itemsOut, m.malformed, m.batches, m.bufferedItems, m.memoryPaused,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

func (m *PipelineMetrics) AddItemsIn(runID string, n int) {
	m.itemsIn.WithLabelValues(runID).Add(float64(n))
}

func (m *PipelineMetrics) AddItemsOut(runID string, n int) {
	m.itemsOut.WithLabelValues(runID).Add(float64(n))
}

func (m *PipelineMetrics) AddMalformed(runID string, n int) {
	m.malformed.WithLabelValues(runID).Add(float64(n))
}

func (m *PipelineMetrics) IncBatches(runID string) {
	m.batches.WithLabelValues(runID).Inc()
}

func (m *PipelineMetrics) SetBuffered(runID, link string, n int) {
	m.bufferedItems.WithLabelValues(runID, link).Set(float64(n))
}

func (m *PipelineMetrics) SetMemoryPaused(runID string, paused bool) {
	v := 0.0
	if paused {
		v = 1.0
	}
	m.memoryPaused.WithLabelValues(runID).Set(v)
}

// Reset clears all collectors (useful for testing).
func (m *PipelineMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.itemsIn.Reset()
	m.itemsOut.Reset()
	m.malformed.Reset()
	m.batches.Reset()
	m.bufferedItems.Reset()
	m.memoryPaused.Reset()
}
