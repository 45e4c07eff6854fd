package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/radiantone/emerge/errors"
)

const namespace = "emerge"

// Registry owns the node's Prometheus registry and core metrics.
// Recording methods are safe for concurrent use.
type Registry struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsTotal     *prometheus.CounterVec

	NamespaceObjects     prometheus.Gauge
	NamespaceDirectories prometheus.Gauge
	WatchClients         prometheus.Gauge
}

// NewRegistry creates a registry with the core node metrics and the Go
// runtime collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "RPC requests handled, by operation and status",
			},
			[]string{"op", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "duration_seconds",
				Help:      "RPC request duration in seconds, by operation",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Faults returned to clients, by error kind",
			},
			[]string{"kind"},
		),

		NamespaceObjects: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "namespace",
				Name:      "objects",
				Help:      "Objects currently stored in the namespace",
			},
		),

		NamespaceDirectories: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "namespace",
				Name:      "directories",
				Help:      "Directories currently present in the namespace",
			},
		),

		WatchClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "watch",
				Name:      "clients",
				Help:      "Connected namespace watch clients",
			},
		),
	}

	r.registry.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.ErrorsTotal,
		r.NamespaceObjects,
		r.NamespaceDirectories,
		r.WatchClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// ObserveRequest records one handled RPC request. A nil err counts as
// status "ok"; a fault counts as status "error" and increments the
// per-kind error counter.
func (r *Registry) ObserveRequest(op string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
		r.ErrorsTotal.WithLabelValues(errors.KindOf(err).String()).Inc()
	}
	r.RequestsTotal.WithLabelValues(op, status).Inc()
	r.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetNamespaceSize updates the namespace gauges from a store snapshot.
func (r *Registry) SetNamespaceSize(objects, directories int) {
	r.NamespaceObjects.Set(float64(objects))
	r.NamespaceDirectories.Set(float64(directories))
}

// Handler returns the Prometheus scrape handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry, used by tests to inspect
// recorded values.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
