// Package metrics exposes the Prometheus collectors of the Mongo log target.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-lynx/lynx-mongolog/pkg/errx"
)

// Prometheus metrics
var (
	documentsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lynx",
		Subsystem: "mongolog",
		Name:      "documents_written_total",
		Help:      "Total number of log documents inserted.",
	})
	writeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lynx",
		Subsystem: "mongolog",
		Name:      "write_errors_total",
		Help:      "Total number of failed writes by error kind.",
	}, []string{"kind"})
	batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lynx",
		Subsystem: "mongolog",
		Name:      "batch_size",
		Help:      "Number of documents per bulk insert.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
	insertLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lynx",
		Subsystem: "mongolog",
		Name:      "insert_latency_seconds",
		Help:      "Latency of insert operations.",
		Buckets:   prometheus.DefBuckets,
	})
	collectionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lynx",
		Subsystem: "mongolog",
		Name:      "collections_opened_total",
		Help:      "Total number of collection handles added to the cache.",
	})
	cappedCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lynx",
		Subsystem: "mongolog",
		Name:      "capped_collections_created_total",
		Help:      "Total number of capped collections created.",
	})
	batcherPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lynx",
		Subsystem: "mongolog",
		Name:      "batcher_pending",
		Help:      "Entries buffered and waiting for the next flush.",
	})
)

func init() {
	prometheus.MustRegister(
		documentsWritten,
		writeErrors,
		batchSize,
		insertLatency,
		collectionsOpened,
		cappedCreated,
		batcherPending,
	)
}

// Recorder receives write path measurements.
type Recorder interface {
	DocumentsWritten(n int)
	WriteError(kind errx.Kind)
	BatchSize(n int)
	InsertLatency(d time.Duration)
	CollectionOpened()
	CappedCreated()
	BatcherPending(n int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) DocumentsWritten(int)        {}
func (Nop) WriteError(errx.Kind)        {}
func (Nop) BatchSize(int)               {}
func (Nop) InsertLatency(time.Duration) {}
func (Nop) CollectionOpened()           {}
func (Nop) CappedCreated()              {}
func (Nop) BatcherPending(int)          {}

// Prometheus records into the package collectors registered with the default
// registry.
type Prometheus struct{}

func (Prometheus) DocumentsWritten(n int) { documentsWritten.Add(float64(n)) }

func (Prometheus) WriteError(kind errx.Kind) { writeErrors.WithLabelValues(kind.String()).Inc() }

func (Prometheus) BatchSize(n int) { batchSize.Observe(float64(n)) }

func (Prometheus) InsertLatency(d time.Duration) { insertLatency.Observe(d.Seconds()) }

func (Prometheus) CollectionOpened() { collectionsOpened.Inc() }

func (Prometheus) CappedCreated() { cappedCreated.Inc() }

func (Prometheus) BatcherPending(n int) { batcherPending.Set(float64(n)) }

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
