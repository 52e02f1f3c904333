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
	poReceipts      *prometheus.CounterVec
	inventoryAlerts prometheus.Gauge
	returnsTotal    *prometheus.CounterVec
}

// NewMetrics builds the registry with HTTP and domain collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdash_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opsdash_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	receipts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdash_po_receipts_total",
		Help: "Purchase order receipts by resulting PO status.",
	}, []string{"status"})
	alerts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opsdash_inventory_alerts",
		Help: "Products at or below their reorder point in the last computed view.",
	})
	returns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdash_returns_total",
		Help: "Return engine outcomes.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, receipts, alerts, returns)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		poReceipts:      receipts,
		inventoryAlerts: alerts,
		returnsTotal:    returns,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
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

// Registerer exposes the registry for additional collectors (job metrics).
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObservePOReceipt counts a committed receive by the PO status it produced.
func (m *Metrics) ObservePOReceipt(status string) {
	if m == nil {
		return
	}
	m.poReceipts.WithLabelValues(status).Inc()
}

// SetInventoryAlerts records the alert count of the latest inventory view.
func (m *Metrics) SetInventoryAlerts(n int) {
	if m == nil {
		return
	}
	m.inventoryAlerts.Set(float64(n))
}

// ObserveReturn counts a return engine outcome (created, keep_it_offered,
// keep_it, inspected, completed).
func (m *Metrics) ObserveReturn(outcome string) {
	if m == nil {
		return
	}
	m.returnsTotal.WithLabelValues(outcome).Inc()
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
