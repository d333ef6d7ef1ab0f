// Package metrics exposes Prometheus instrumentation for the daemon: HTTP
// request accounting plus counters for the predict/record/detect pipeline.
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
			Name: "satwatch_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satwatch_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	passesPredicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satwatch_passes_predicted_total",
			Help: "Total number of passes returned by prediction sweeps.",
		},
	)

	recordingsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satwatch_recordings_started_total",
			Help: "Total number of capture sessions started.",
		},
	)

	recordingsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satwatch_recordings_failed_total",
			Help: "Total number of capture sessions that failed.",
		},
	)

	candidatesFound = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satwatch_candidates_found_total",
			Help: "Total number of detection candidates across all recordings.",
		},
	)

	schedulerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "satwatch_scheduler_state",
			Help: "Current scheduler state (1 for the active state, 0 otherwise).",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(passesPredicted)
	prometheus.MustRegister(recordingsStarted)
	prometheus.MustRegister(recordingsFailed)
	prometheus.MustRegister(candidatesFound)
	prometheus.MustRegister(schedulerState)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// PassesPredicted adds n to the predicted-pass counter.
func PassesPredicted(n int) {
	passesPredicted.Add(float64(n))
}

// RecordingStarted increments the capture-session counter.
func RecordingStarted() {
	recordingsStarted.Inc()
}

// RecordingFailed increments the failed-capture counter.
func RecordingFailed() {
	recordingsFailed.Inc()
}

// CandidatesFound adds n to the candidate counter.
func CandidatesFound(n int) {
	candidatesFound.Add(float64(n))
}

// SetSchedulerState marks state as active and clears all others.
func SetSchedulerState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		schedulerState.WithLabelValues(s).Set(v)
	}
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

		httpRequestsTotal.WithLabelValues(r.URL.Path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(r.URL.Path, r.Method).Observe(duration)
	})
}
