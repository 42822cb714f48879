// Package metrics exports Gatherer and Regularizer accounting to
// Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pidato/framing/frame"
	"github.com/pidato/framing/gather"
	"github.com/pidato/framing/regulate"
)

const namespace = "framer"

// Metrics holds the engine collectors. Its Gather and Regulate observers can
// be shared by any number of streams.
type Metrics struct {
	// Gatherer
	FedSamples   prometheus.Counter
	ReadRequests prometheus.Counter
	ShortReads   prometheus.Counter
	ReadSamples  prometheus.Counter
	GatherDrops  *prometheus.CounterVec
	Rebuilds     *prometheus.CounterVec

	// Regularizer
	Chunks       *prometheus.CounterVec
	EmittedBytes prometheus.Counter
	ChunkSize    prometheus.Histogram
	Drops        *prometheus.CounterVec
	DroppedBytes *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FedSamples: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gather",
			Name:      "fed_samples_total",
			Help:      "Linear samples queued by Feed",
		}),
		ReadRequests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gather",
			Name:      "read_requests_total",
			Help:      "Calls to Read",
		}),
		ShortReads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gather",
			Name:      "short_reads_total",
			Help:      "Reads that found fewer samples than requested",
		}),
		ReadSamples: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gather",
			Name:      "read_samples_total",
			Help:      "Samples returned by Read",
		}),
		GatherDrops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gather",
			Name:      "dropped_frames_total",
			Help:      "Frames that could not be converted",
		}, []string{"format"}),
		Rebuilds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gather",
			Name:      "session_rebuilds_total",
			Help:      "Conversion sessions opened after a source format change",
		}, []string{"format"}),
		Chunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regulate",
			Name:      "chunks_total",
			Help:      "Frames returned by Read",
		}, []string{"path"}),
		EmittedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regulate",
			Name:      "emitted_bytes_total",
			Help:      "Payload bytes returned by Read",
		}),
		ChunkSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "regulate",
			Name:      "chunk_bytes",
			Help:      "Payload length of returned frames",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10), // 10B to ~5KB
		}),
		Drops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regulate",
			Name:      "drops_total",
			Help:      "Input discarded by the Regularizer",
		}, []string{"reason"}),
		DroppedBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regulate",
			Name:      "dropped_bytes_total",
			Help:      "Payload bytes discarded by the Regularizer",
		}, []string{"reason"}),
	}
}

// Gather returns an observer for gather.WithObserver.
func (m *Metrics) Gather() gather.Observer {
	return gatherObserver{m}
}

// Regulate returns an observer for regulate.WithObserver.
func (m *Metrics) Regulate() regulate.Observer {
	return regulateObserver{m}
}

type gatherObserver struct{ m *Metrics }

func (o gatherObserver) ObserveFeed(samples int) {
	o.m.FedSamples.Add(float64(samples))
}

func (o gatherObserver) ObserveRead(requested, written int) {
	o.m.ReadRequests.Inc()
	o.m.ReadSamples.Add(float64(written))
	if written < requested {
		o.m.ShortReads.Inc()
	}
}

func (o gatherObserver) ObserveDrop(src frame.Format) {
	o.m.GatherDrops.WithLabelValues(src.String()).Inc()
}

func (o gatherObserver) ObserveRebuild(src frame.Format) {
	o.m.Rebuilds.WithLabelValues(src.String()).Inc()
}

type regulateObserver struct{ m *Metrics }

func (o regulateObserver) ObserveEmit(bytes int, zeroCopy bool) {
	path := "copy"
	if zeroCopy {
		path = "zero_copy"
	}
	o.m.Chunks.WithLabelValues(path).Inc()
	o.m.EmittedBytes.Add(float64(bytes))
	o.m.ChunkSize.Observe(float64(bytes))
}

func (o regulateObserver) ObserveDrop(reason string, bytes int) {
	o.m.Drops.WithLabelValues(reason).Inc()
	o.m.DroppedBytes.WithLabelValues(reason).Add(float64(bytes))
}
