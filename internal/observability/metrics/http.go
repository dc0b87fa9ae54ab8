package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

const namespace = "tryon"

// StudioMetrics is the registry of the storefront process. It also satisfies
// the use case's metrics port.
type StudioMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	previewsTotal    *prometheus.CounterVec
	composeDuration  *prometheus.HistogramVec
	uploadsTotal     *prometheus.CounterVec
	customOrderTotal *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
}

func NewStudioMetrics(service string) *StudioMetrics {
	registry := prometheus.NewRegistry()

	m := &StudioMetrics{
		registry: registry,
		service:  service,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"service", "method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		previewsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preview",
			Name:      "requests_total",
			Help:      "Preview generation attempts by outcome.",
		}, []string{"service", "status"}),
		composeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "preview",
			Name:      "compose_duration_seconds",
			Help:      "Round trip of the remote composition call.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"service", "status"}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "studio",
			Name:      "uploads_total",
			Help:      "Uploaded files by kind and outcome.",
		}, []string{"service", "kind", "status"}),
		customOrderTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "studio",
			Name:      "custom_orders_total",
			Help:      "Custom order submissions by outcome.",
		}, []string{"service", "status"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		}, []string{"service", "operation"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.previewsTotal,
		m.composeDuration,
		m.uploadsTotal,
		m.customOrderTotal,
		m.breakerState,
	)
	return m
}

func (m *StudioMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterGaugeFunc exposes a value sampled at scrape time.
func (m *StudioMetrics) RegisterGaugeFunc(subsystem, name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": m.service},
	}, fn))
}

func (m *StudioMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(m.service, r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/features/"):
		return "/features/{feature}"
	case strings.HasPrefix(path, "/lovable-uploads/"):
		return "/lovable-uploads/*"
	case strings.HasPrefix(path, "/assets/"):
		return "/assets/*"
	default:
		return path
	}
}

func (m *StudioMetrics) ObservePreview(status string, d time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.previewsTotal.WithLabelValues(m.service, status).Inc()
	if d > 0 {
		m.composeDuration.WithLabelValues(m.service, status).Observe(d.Seconds())
	}
}

func (m *StudioMetrics) ObserveUpload(kind, status string) {
	m.uploadsTotal.WithLabelValues(m.service, kind, status).Inc()
}

func (m *StudioMetrics) ObserveCustomOrder(status string) {
	m.customOrderTotal.WithLabelValues(m.service, status).Inc()
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *StudioMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	var v float64
	switch to {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(v)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
