// Package metrics exposes the sidecar's operational counters, gauges, and
// histograms through a real Prometheus client registry rather than
// hand-rolled exposition formatting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registry bundles every metric the core publishes. It is constructed once
// at startup and passed by handle to every component that reports metrics,
// the same way the teacher threads its storage and rate-limiter
// dependencies through constructors rather than reaching for package-level
// globals.
type Registry struct {
	registry *prometheus.Registry

	EventsQueued    *prometheus.CounterVec
	EventsProcessed prometheus.Counter
	EventsDropped   *prometheus.CounterVec
	EventsSampled   prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec

	QueueSize        prometheus.Gauge
	QueueUtilization prometheus.Gauge
	CPUUsage         prometheus.Gauge
	MemoryUsage      prometheus.Gauge
	ProfilingEnabled prometheus.Gauge

	EventProcessingDuration prometheus.Histogram
	PersistenceBatchSize    prometheus.Histogram
}

// New constructs a Registry with every metric registered under the
// "sidecar_" namespace named in the control-plane metric set.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		EventsQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sidecar_events_queued",
			Help: "Total events accepted onto the bounded queue.",
		}, []string{"event_type"}),
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sidecar_events_processed",
			Help: "Total events successfully persisted.",
		}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sidecar_events_dropped",
			Help: "Total events dropped, by reason.",
		}, []string{"reason"}),
		EventsSampled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sidecar_events_sampled",
			Help: "Total events discarded by the sampler before enqueue.",
		}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sidecar_errors_total",
			Help: "Total errors caught by the fail-open wrapper, by operation.",
		}, []string{"operation"}),
		QueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sidecar_queue_size",
			Help: "Current number of events buffered in the queue.",
		}),
		QueueUtilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sidecar_queue_utilization",
			Help: "Current queue size divided by its capacity.",
		}),
		CPUUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sidecar_cpu_usage",
			Help: "Sampled process CPU usage percentage.",
		}),
		MemoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sidecar_memory_usage",
			Help: "Sampled process resident memory in megabytes.",
		}),
		ProfilingEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sidecar_profiling_enabled",
			Help: "1 if expensive observation is enabled, 0 if auto-disabled on resource breach.",
		}),
		EventProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sidecar_event_processing_duration_ms",
			Help:    "Per-event processing latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		PersistenceBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sidecar_persistence_batch_size",
			Help:    "Number of records committed per persistence batch.",
			Buckets: []float64{1, 4, 8, 16, 32, 64, 128, 256},
		}),
	}

	reg.MustRegister(
		r.EventsQueued, r.EventsProcessed, r.EventsDropped, r.EventsSampled, r.ErrorsTotal,
		r.QueueSize, r.QueueUtilization, r.CPUUsage, r.MemoryUsage, r.ProfilingEnabled,
		r.EventProcessingDuration, r.PersistenceBatchSize,
	)

	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for promhttp.HandlerFor.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Snapshot is a point-in-time readout of the counters and gauges the
// control-plane JSON endpoints (GET /health) embed, collected through the
// registry's own Gather rather than duplicating bookkeeping alongside the
// Prometheus series.
type Snapshot struct {
	EventsQueued     float64
	EventsProcessed  float64
	EventsDropped    float64
	ErrorsTotal      float64
	QueueSize        float64
	QueueUtilization float64
	CPUUsage         float64
	MemoryUsage      float64
}

// Snapshot gathers the current value of every metric this Registry owns.
// A Gather failure (which the in-process registry never actually returns)
// yields a zero-value Snapshot rather than an error, matching the
// fail-open discipline the rest of the control plane follows.
func (r *Registry) Snapshot() Snapshot {
	families, err := r.registry.Gather()
	if err != nil {
		return Snapshot{}
	}

	var s Snapshot
	for _, f := range families {
		total := sumMetricFamily(f)

		switch f.GetName() {
		case "sidecar_events_queued":
			s.EventsQueued = total
		case "sidecar_events_processed":
			s.EventsProcessed = total
		case "sidecar_events_dropped":
			s.EventsDropped = total
		case "sidecar_errors_total":
			s.ErrorsTotal = total
		case "sidecar_queue_size":
			s.QueueSize = total
		case "sidecar_queue_utilization":
			s.QueueUtilization = total
		case "sidecar_cpu_usage":
			s.CPUUsage = total
		case "sidecar_memory_usage":
			s.MemoryUsage = total
		}
	}

	return s
}

func sumMetricFamily(f *dto.MetricFamily) float64 {
	var total float64

	for _, m := range f.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		}
	}

	return total
}
