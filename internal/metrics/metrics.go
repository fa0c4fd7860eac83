// Package metrics wraps prometheus/client_golang in a Registry exposing
// histograms for contention waits, a gauge for queue depths, a counter for
// replacements, and gauges for reported percentiles. It is purely additive observability
// layered on top of internal/latency's LatencyLog, which stays the sole
// source of truth for percentiles — Registry only mirrors values
// LatencyLog already computed, rather than recomputing them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/corretto/heapothesys-go/internal/latency"
)

// Registry groups every metric this module exposes under one
// prometheus.Registerer, so cmd/heapothesys can wire it to an HTTP
// exposition endpoint or leave it unregistered for a bare library run.
type Registry struct {
	reg *prometheus.Registry

	readWait  prometheus.Histogram
	writeWait prometheus.Histogram

	queueDepth      *prometheus.GaugeVec
	replacements    *prometheus.CounterVec
	percentileGauge *prometheus.GaugeVec
}

// New constructs a Registry and registers every metric with it.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		readWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "heapothesys",
			Name:      "read_wait_microseconds",
			Help:      "Wait time to acquire a reader lock on a shared structure.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 16),
		}),
		writeWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "heapothesys",
			Name:      "write_wait_microseconds",
			Help:      "Wait time to acquire a writer lock on a shared structure.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 16),
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "heapothesys",
			Name:      "queue_depth",
			Help:      "Current depth of a named queue instance.",
		}, []string{"queue"}),
		replacements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heapothesys",
			Name:      "replacements_total",
			Help:      "Count of entity replacements performed, by kind.",
		}, []string{"kind"}),
		percentileGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "heapothesys",
			Name:      "latency_percentile_microseconds",
			Help:      "Most recently reported latency percentile, by percentile label.",
		}, []string{"op", "percentile"}),
	}
	r.reg.MustRegister(r.readWait, r.writeWait, r.queueDepth, r.replacements, r.percentileGauge)
	return r
}

// Registerer exposes the underlying prometheus.Registry for an HTTP
// exposition handler to attach to.
func (r *Registry) Registerer() *prometheus.Registry { return r.reg }

// ObserveReadWait records one reader-lock wait-time sample, in
// microseconds.
func (r *Registry) ObserveReadWait(us int64) { r.readWait.Observe(float64(us)) }

// ObserveWriteWait records one writer-lock wait-time sample, in
// microseconds.
func (r *Registry) ObserveWriteWait(us int64) { r.writeWait.Observe(float64(us)) }

// SetQueueDepth reports the current depth of the named queue instance.
func (r *Registry) SetQueueDepth(queue string, depth int) {
	r.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// IncReplacement counts one completed replacement of the given kind
// ("product" or "customer").
func (r *Registry) IncReplacement(kind string) {
	r.replacements.WithLabelValues(kind).Inc()
}

// ObserveLatency mirrors a LatencyLog's current percentile snapshot into
// gauges labeled by op, on whatever cadence the caller already samples
// the log for reporting. It never recomputes percentiles itself.
func (r *Registry) ObserveLatency(op string, snap latency.Snapshot) {
	r.percentileGauge.WithLabelValues(op, "p50").Set(float64(snap.P50))
	r.percentileGauge.WithLabelValues(op, "p95").Set(float64(snap.P95))
	r.percentileGauge.WithLabelValues(op, "p99").Set(float64(snap.P99))
	r.percentileGauge.WithLabelValues(op, "p999").Set(float64(snap.P999))
	r.percentileGauge.WithLabelValues(op, "p9999").Set(float64(snap.P9999))
	r.percentileGauge.WithLabelValues(op, "p99999").Set(float64(snap.P99999))
	r.percentileGauge.WithLabelValues(op, "p100").Set(float64(snap.P100))
}
