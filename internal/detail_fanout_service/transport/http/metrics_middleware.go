package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// PrometheusMetricsMiddleware records request count and latency per route pattern.
func PrometheusMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		// A panic is recorded as a 500 by the deferred observation before it propagates
		// to the recoverer.
		defer func() {
			path := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				path = rctx.RoutePattern()
			}
			status := ww.Status()
			if rec := recover(); rec != nil {
				observe(r.Method, path, http.StatusInternalServerError, start)
				panic(rec)
			}
			if status == 0 {
				status = http.StatusOK
			}
			observe(r.Method, path, status, start)
		}()

		next.ServeHTTP(ww, r)
	})
}

func observe(method, path string, status int, start time.Time) {
	httpRequestDurationSeconds.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}
