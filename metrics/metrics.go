// Package metrics exposes Prometheus collectors for the gateway on a
// dedicated registry.
//
// The registry is served on its own listener so that /metrics never shadows
// an object key on the gateway port.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sagarc03/stowgate"
)

const namespace = "stowgate"

type Metrics struct {
	reg      *prometheus.Registry
	inflight prometheus.Gauge
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	deleteRecovered prometheus.Counter
	deleteFailed    *prometheus.CounterVec
}

var _ stowgate.DeleteObserver = (*Metrics)(nil)

// New creates a Metrics instance with a fresh registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of inflight HTTP requests.",
	})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests processed, partitioned by status code and method.",
	}, []string{"code", "method"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Histogram of latencies for HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"code", "method"})
	deleteRecovered := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "delete_recovered_total",
		Help:      "Deletes reported as failed by the backend whose key was confirmed absent.",
	})
	deleteFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "delete_failed_total",
		Help:      "Deletes surfaced to clients as failures, partitioned by backend error code.",
	}, []string{"code"})

	reg.MustRegister(
		inflight,
		requests,
		latency,
		deleteRecovered,
		deleteFailed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		reg:             reg,
		inflight:        inflight,
		requests:        requests,
		latency:         latency,
		deleteRecovered: deleteRecovered,
		deleteFailed:    deleteFailed,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Middleware records the inflight gauge, request counter and latency
// histogram for every request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		m.requests.WithLabelValues(code, r.Method).Inc()
		m.latency.WithLabelValues(code, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) DeleteRecovered(string, error) {
	m.deleteRecovered.Inc()
}

func (m *Metrics) DeleteFailed(_ string, cause error) {
	m.deleteFailed.WithLabelValues(errorCode(cause)).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func errorCode(err error) string {
	if be, ok := stowgate.AsBackendError(err); ok {
		return be.ErrorCode()
	}
	return "Unknown"
}
