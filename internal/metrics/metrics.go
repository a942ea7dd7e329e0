// Package metrics holds gemdrive's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels for MutationsTotal.
const (
	ResultOK         = "ok"
	ResultPersist    = "persist_error"
	ResultStat       = "stat_error"
	ResultLogAppend  = "log_error"
	ResultNotFound   = "not_found"
	ResultBadRequest = "invalid"
)

var latencyBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics tracks mutation throughput, log latency and subscriber health.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	MutationsTotal     *prometheus.CounterVec
	MutationDuration   *prometheus.HistogramVec
	LogAppendDuration  prometheus.Histogram
	Subscribers        prometheus.Gauge
	SubscriberDrops    prometheus.Counter
	BroadcastEvents    prometheus.Counter
	ReplayedEvents     prometheus.Counter
	StoreReadBytes     prometheus.Counter
	StoreWriteBytes    prometheus.Counter
	StoreCommitLatency prometheus.Histogram
}

// New registers all collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		MutationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gemdrive_mutations_total",
			Help: "Mutations processed by the pipeline, by kind and result",
		}, []string{"kind", "result"}),
		MutationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gemdrive_mutation_duration_seconds",
			Help:    "End-to-end mutation latency (persist, stat, append, enqueue)",
			Buckets: latencyBuckets,
		}, []string{"kind"}),
		LogAppendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gemdrive_log_append_duration_seconds",
			Help:    "Duration of durable event log appends",
			Buckets: latencyBuckets,
		}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "gemdrive_subscribers",
			Help: "Currently registered live subscribers",
		}),
		SubscriberDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "gemdrive_subscriber_drops_total",
			Help: "Subscribers disconnected for not keeping up",
		}),
		BroadcastEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "gemdrive_broadcast_events_total",
			Help: "Events handed to the subscription registry",
		}),
		ReplayedEvents: f.NewCounter(prometheus.CounterOpts{
			Name: "gemdrive_replayed_events_total",
			Help: "Backlog events delivered to subscribers from the log",
		}),
		StoreReadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "gemdrive_store_read_bytes_total",
			Help: "Bytes read by point lookups on the log store",
		}),
		StoreWriteBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "gemdrive_store_write_bytes_total",
			Help: "Bytes committed to the log store",
		}),
		StoreCommitLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "gemdrive_store_commit_duration_seconds",
			Help:    "Log store batch commit latency",
			Buckets: latencyBuckets,
		}),
	}
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveMutation records one finished mutation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMutation(kind, result string, start time.Time) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(kind, result).Inc()
	m.MutationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// ObserveLogAppend records the duration of a log append.
func (m *Metrics) ObserveLogAppend(start time.Time) {
	if m == nil {
		return
	}
	m.LogAppendDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.Subscribers.Inc()
	}
}

func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.Subscribers.Dec()
	}
}

func (m *Metrics) IncrementSubscriberDrops() {
	if m != nil {
		m.SubscriberDrops.Inc()
	}
}

func (m *Metrics) IncrementBroadcast() {
	if m != nil {
		m.BroadcastEvents.Inc()
	}
}

func (m *Metrics) AddReplayed(n int) {
	if m != nil {
		m.ReplayedEvents.Add(float64(n))
	}
}

// StoreHook adapts Metrics to the pebblestore.MetricsHook interface.
type StoreHook struct{ M *Metrics }

func (h StoreHook) ObserveWrite(_ time.Duration, bytes int) {
	if h.M != nil {
		h.M.StoreWriteBytes.Add(float64(bytes))
	}
}

func (h StoreHook) ObserveRead(_ time.Duration, bytes int) {
	if h.M != nil {
		h.M.StoreReadBytes.Add(float64(bytes))
	}
}

func (h StoreHook) ObserveBatchCommit(elapsed time.Duration, _ int, bytes int) {
	if h.M != nil {
		h.M.StoreCommitLatency.Observe(elapsed.Seconds())
		h.M.StoreWriteBytes.Add(float64(bytes))
	}
}
