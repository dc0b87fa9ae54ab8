package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the custom-order consumer.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	ordersTotal    *prometheus.CounterVec
	handleDuration prometheus.Histogram
	inFlight       prometheus.Gauge
	deliveryLag    prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	labels := prometheus.Labels{"service": service}
	m := &WorkerMetrics{
		registry: prometheus.NewRegistry(),
		service:  service,
		ordersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "custom_orders_total",
			Help:      "Custom orders received by handling status.",
		}, []string{"service", "status"}),
		handleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "custom_order_handle_seconds",
			Help:        "Time spent handling one custom order.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "custom_orders_in_flight",
			Help:        "Custom orders currently being handled.",
			ConstLabels: labels,
		}),
		deliveryLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "delivery_lag_seconds",
			Help:        "Delay between order submission and handling start.",
			Buckets:     []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(m.ordersTotal, m.handleDuration, m.inFlight, m.deliveryLag)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartOrder marks the beginning of handling and records the delivery lag.
func (m *WorkerMetrics) StartOrder(submittedAt time.Time) {
	m.inFlight.Inc()
	if !submittedAt.IsZero() {
		if lag := time.Since(submittedAt); lag >= 0 {
			m.deliveryLag.Observe(lag.Seconds())
		}
	}
}

func (m *WorkerMetrics) FinishOrder(duration time.Duration, err error) {
	m.inFlight.Dec()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ordersTotal.WithLabelValues(m.service, status).Inc()
	m.handleDuration.Observe(duration.Seconds())
}
