package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the API.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	lowStockItems   prometheus.Gauge
	totalMismatches prometheus.Gauge
}

// NewMetrics builds a private registry with HTTP and order metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "HTTP requests by route pattern and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "HTTP request latency per route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_order_transitions_total",
		Help: "Order status changes by kind, source and target status.",
	}, []string{"kind", "from", "to"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_order_transitions_rejected_total",
		Help: "Order status changes refused by the state machine.",
	}, []string{"kind", "from", "to"})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odyssey_inventory_low_stock_items",
		Help: "Items below their minimum stock at the last scan.",
	})
	mismatches := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odyssey_order_total_mismatches",
		Help: "Orders whose stored total disagreed with their lines at the last integrity sweep.",
	})
	registry.MustRegister(requests, duration, transitions, rejected, lowStock, mismatches)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		transitions:     transitions,
		rejected:        rejected,
		lowStockItems:   lowStock,
		totalMismatches: mismatches,
	}
}

// Handler serves the registry on /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for job metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveTransition counts an accepted order status change.
func (m *Metrics) ObserveTransition(kind, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind, from, to).Inc()
}

// ObserveRejectedTransition counts a refused order status change.
func (m *Metrics) ObserveRejectedTransition(kind, from, to string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(kind, from, to).Inc()
}

// SetLowStockItems records the size of the last low-stock scan.
func (m *Metrics) SetLowStockItems(n int) {
	if m == nil {
		return
	}
	m.lowStockItems.Set(float64(n))
}

// SetTotalMismatches records the result of the last order total sweep.
func (m *Metrics) SetTotalMismatches(n int) {
	if m == nil {
		return
	}
	m.totalMismatches.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
