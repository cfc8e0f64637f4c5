// Package metrics exposes isstrackd's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstrackd_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isstrackd_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	refreshCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstrackd_refresh_cycles_total",
			Help: "Refresh cycles by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	refreshDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "isstrackd_refresh_duration_seconds",
			Help:    "Fetch and propagate time per refresh cycle.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	historyFixes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "isstrackd_history_fixes",
			Help: "Number of fixes currently held in the history buffer.",
		},
	)

	lastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "isstrackd_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(refreshCyclesTotal)
	prometheus.MustRegister(refreshDurationSeconds)
	prometheus.MustRegister(historyFixes)
	prometheus.MustRegister(lastSuccessTimestamp)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records one refresh cycle. result is "ok", "discarded" or an
// error kind.
func ObserveCycle(trigger, result string, d time.Duration, historyLen int, finished time.Time) {
	refreshCyclesTotal.WithLabelValues(trigger, result).Inc()
	refreshDurationSeconds.Observe(d.Seconds())
	historyFixes.Set(float64(historyLen))
	if result == "ok" {
		lastSuccessTimestamp.Set(float64(finished.Unix()))
	}
}

// SetHistoryLen updates the history gauge outside a cycle, e.g. on reset.
func SetHistoryLen(n int) {
	historyFixes.Set(float64(n))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}

var knownRoutes = map[string]bool{
	"/healthz":           true,
	"/metrics":           true,
	"/ws":                true,
	"/demo/stations.txt": true,
	"/api/status":        true,
	"/api/version":       true,
	"/api/config":        true,
	"/api/position":      true,
	"/api/history":       true,
	"/api/map":           true,
	"/api/table":         true,
	"/api/telemetry":     true,
	"/api/next-pass":     true,
	"/api/logs":          true,
	"/api/refresh":       true,
	"/api/pause":         true,
	"/api/resume":        true,
	"/api/interval":      true,
	"/api/reset":         true,
	"/api/reload":        true,
}

// normalizeRoute keeps the path label bounded by folding unknown paths.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}
