package voidhttp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsCollector exposes Stats as Prometheus gauges/counters.
// Stats itself is the single source of truth, mirrored into both the
// monitor's JSON payload and these series, never duplicated state.
type metricsCollector struct {
	totalConnections  prometheus.Counter
	activeConnections prometheus.Gauge
	totalRequests     prometheus.Counter
	bytesReceived     prometheus.Counter
	bytesSent         prometheus.Counter
	errors            prometheus.Counter
}

func newMetricsCollector(reg prometheus.Registerer) *metricsCollector {
	factory := promauto.With(reg)
	return &metricsCollector{
		totalConnections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voidwave",
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Total number of accepted connections.",
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "voidwave",
			Subsystem: "server",
			Name:      "connections_active",
			Help:      "Currently open connections.",
		}),
		totalRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voidwave",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of completed requests.",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voidwave",
			Subsystem: "server",
			Name:      "bytes_received_total",
			Help:      "Total body bytes received across all requests.",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voidwave",
			Subsystem: "server",
			Name:      "bytes_sent_total",
			Help:      "Total bytes written across all responses.",
		}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "voidwave",
			Subsystem: "server",
			Name:      "errors_total",
			Help:      "Requests completed with a 5xx status.",
		}),
	}
}

// sync pushes the delta between the last observed Stats values and the
// current ones into the counters (Stats itself only ever increases,
// matching Prometheus counter semantics) and sets the active-connections
// gauge to its current value. last is updated in place.
func (mc *metricsCollector) sync(s *Stats, last *Stats) {
	if d := s.TotalConnections.Load() - last.TotalConnections.Load(); d > 0 {
		mc.totalConnections.Add(float64(d))
	}
	if d := s.TotalRequests.Load() - last.TotalRequests.Load(); d > 0 {
		mc.totalRequests.Add(float64(d))
	}
	if d := s.BytesReceived.Load() - last.BytesReceived.Load(); d > 0 {
		mc.bytesReceived.Add(float64(d))
	}
	if d := s.BytesSent.Load() - last.BytesSent.Load(); d > 0 {
		mc.bytesSent.Add(float64(d))
	}
	if d := s.Errors.Load() - last.Errors.Load(); d > 0 {
		mc.errors.Add(float64(d))
	}
	mc.activeConnections.Set(float64(s.ActiveConnections.Load()))

	last.TotalConnections.Store(s.TotalConnections.Load())
	last.TotalRequests.Store(s.TotalRequests.Load())
	last.BytesReceived.Store(s.BytesReceived.Load())
	last.BytesSent.Store(s.BytesSent.Load())
	last.Errors.Store(s.Errors.Load())
}

// MetricsHandler returns an http.Handler serving s as Prometheus text
// exposition format, registered against reg (a *prometheus.Registry such
// as prometheus.NewRegistry(), which also serves as the gatherer for the
// handler). Every call to the returned handler's ServeHTTP
// resyncs the counters from s first, so no background ticker is required.
func MetricsHandler(s *Stats, reg *prometheus.Registry) http.Handler {
	mc := newMetricsCollector(reg)
	last := &Stats{}
	inner := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.sync(s, last)
		inner.ServeHTTP(w, r)
	})
}
