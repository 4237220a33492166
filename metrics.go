package decryptfs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of a server. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	BytesDecrypted   prometheus.Counter
	StreamErrors     prometheus.Counter
	KDFDuration      prometheus.Histogram
	KDFPending       prometheus.Gauge
}

// NewMetrics creates a registry with the server collectors and the standard
// process and Go runtime collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	m := &Metrics{registry: reg}

	m.RequestsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "decryptfs_http_requests_total",
			Help: "Total number of HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)

	m.RequestDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "decryptfs_http_request_duration_seconds",
			Help:    "Time from request arrival to the end of the response body",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	m.RequestsInFlight = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "decryptfs_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	m.BytesDecrypted = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "decryptfs_decrypted_bytes_total",
			Help: "Plaintext bytes produced by all containers",
		},
	)

	m.StreamErrors = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "decryptfs_stream_errors_total",
			Help: "Responses aborted after the body had started",
		},
	)

	m.KDFDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decryptfs_kdf_duration_seconds",
			Help:    "Time spent in PBKDF2 per derivation",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	m.KDFPending = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "decryptfs_kdf_pending",
			Help: "Derivations queued or running",
		},
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the /metrics endpoint for this registry
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest records a finished request
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.RequestsTotal.WithLabelValues(method, code).Inc()
	m.RequestDuration.WithLabelValues(method, code).Observe(duration.Seconds())
}

// InFlight adjusts the in-flight gauge by delta
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.RequestsInFlight.Add(delta)
}

// AddDecrypted counts n plaintext bytes
func (m *Metrics) AddDecrypted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesDecrypted.Add(float64(n))
}

// StreamError counts an aborted response
func (m *Metrics) StreamError() {
	if m == nil {
		return
	}
	m.StreamErrors.Inc()
}

// ObserveKDF records the duration of one derivation
func (m *Metrics) ObserveKDF(d time.Duration) {
	if m == nil {
		return
	}
	m.KDFDuration.Observe(d.Seconds())
}

// KDFQueued adjusts the pending derivations gauge by delta
func (m *Metrics) KDFQueued(delta float64) {
	if m == nil {
		return
	}
	m.KDFPending.Add(delta)
}
