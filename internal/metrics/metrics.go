// Package metrics provides Prometheus instrumentation for swap-desk.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PlacementsTotal counts draft operations, partitioned by outcome.
	PlacementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapdesk_placements_total",
		Help: "Total number of draft placement operations by outcome",
	}, []string{"outcome"})

	// SubmissionsTotal counts trade submissions by result
	// (ok, backend_error, in_flight, incomplete).
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapdesk_submissions_total",
		Help: "Total number of trade offer submissions by result",
	}, []string{"result"})

	// SubmissionLatency tracks the backend round trip of a submission.
	SubmissionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapdesk_submission_latency_seconds",
		Help:    "Trade offer submission latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// OpenDrafts tracks drafts created and not yet submitted or discarded.
	OpenDrafts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swapdesk_open_drafts",
		Help: "Number of open trade drafts",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swapdesk_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// BackendRequestsTotal counts outbound marketplace backend calls.
	BackendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapdesk_backend_requests_total",
		Help: "Total requests to the marketplace backend",
	}, []string{"method", "status"})

	// BackendLatency tracks outbound backend call duration.
	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapdesk_backend_latency_seconds",
		Help:    "Marketplace backend request duration in seconds",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"method"})

	// CatalogCacheTotal counts catalog cache lookups by result (hit, miss).
	CatalogCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapdesk_catalog_cache_total",
		Help: "Catalog cache lookups by result",
	}, []string{"result"})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapdesk_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapdesk_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, routePattern(r), strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, routePattern(r)).Observe(duration)
	})
}

// routePattern uses the chi route pattern for the path label so ids in the
// URL do not blow up label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so WebSocket upgrades work
// behind this middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
