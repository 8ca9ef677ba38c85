package cmd

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"

	"github.com/evlabs/seqloader/seqload"
)

// StreamMetrics holds the Prometheus metrics for one streaming run.
type StreamMetrics struct {
	registry *prometheus.Registry

	BatchesTotal    prometheus.Counter
	PaddedSlots     prometheus.Counter
	FilesVisited    prometheus.Counter
	RetiredForError prometheus.Counter
	BoxesTotal      prometheus.Counter
	EpochSeconds    prometheus.Gauge
	BatchesPerSec   prometheus.Gauge
}

// NewStreamMetrics creates a new set of streaming metrics
func NewStreamMetrics(labels prometheus.Labels) *StreamMetrics {
	metrics := &StreamMetrics{
		BatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "seqloader_batches_total",
			Help:        "Batches emitted across all epochs",
			ConstLabels: labels,
		}),
		PaddedSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "seqloader_padded_slots_total",
			Help:        "Batch slots filled with zero padding",
			ConstLabels: labels,
		}),
		FilesVisited: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "seqloader_files_visited_total",
			Help:        "Recording files assigned to a cursor slot",
			ConstLabels: labels,
		}),
		RetiredForError: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "seqloader_cursors_retired_for_error_total",
			Help:        "Cursors dropped after unreadable or corrupt data",
			ConstLabels: labels,
		}),
		BoxesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "seqloader_boxes_total",
			Help:        "Box labels delivered after windowing and filtering",
			ConstLabels: labels,
		}),
		EpochSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "seqloader_epoch_duration_seconds",
			Help:        "Duration of the last completed epoch",
			ConstLabels: labels,
		}),
		BatchesPerSec: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "seqloader_batches_per_second",
			Help:        "Throughput of the last completed epoch",
			ConstLabels: labels,
		}),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.BatchesTotal,
		metrics.PaddedSlots,
		metrics.FilesVisited,
		metrics.RetiredForError,
		metrics.BoxesTotal,
		metrics.EpochSeconds,
		metrics.BatchesPerSec,
	)
	metrics.registry = registry
	return metrics
}

// ObserveBatch records one emitted batch.
func (m *StreamMetrics) ObserveBatch(batch *seqload.Batch) {
	m.BatchesTotal.Inc()
	for i, labels := range batch.Labels {
		if batch.Padding[i] {
			m.PaddedSlots.Inc()
		}
		m.BoxesTotal.Add(float64(len(labels)))
	}
}

// ObserveEpoch records the end-of-epoch counters.
func (m *StreamMetrics) ObserveEpoch(stats seqload.MultiplexerStats, elapsed time.Duration) {
	m.FilesVisited.Add(float64(stats.FilesVisited))
	m.RetiredForError.Add(float64(stats.RetiredForError))
	m.EpochSeconds.Set(elapsed.Seconds())
	if elapsed > 0 {
		m.BatchesPerSec.Set(float64(stats.Batches) / elapsed.Seconds())
	}
}

// WriteTextfile dumps the registry in text exposition format, for node
// exporter textfile collection or plain inspection.
func (m *StreamMetrics) WriteTextfile(path string) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return err
		}
	}
	return nil
}

// Push sends the registry to a Prometheus push gateway. Failures are logged
// and swallowed; metrics must never abort a run.
func (m *StreamMetrics) Push(url string) {
	if err := push.New(url, "seqloader").Gatherer(m.registry).Push(); err != nil {
		log.WithFields(log.Fields{"url": url, "error": err}).Warn("Failed to push metrics")
	}
}
