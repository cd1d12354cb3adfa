// Package metrics exposes Prometheus instrumentation for the planning
// service: HTTP request accounting, visibility batch timing, sky cache
// behavior, and stream connection counters.
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
			Name: "spot_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spot_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	visibilityComputationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spot_visibility_computations_total",
			Help: "Per-target visibility computations by outcome.",
		},
		[]string{"status"},
	)

	visibilityBatchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spot_visibility_batch_seconds",
			Help:    "Wall time of batch visibility computations.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	visibilityBatchTargets = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spot_visibility_batch_targets",
			Help:    "Number of targets per visibility batch.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	crossingFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spot_crossing_fallbacks_total",
			Help: "Crossing refinements that fell back to dense sampling.",
		},
	)

	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spot_skycache_hits_total",
			Help: "Sky frame cache hits.",
		},
	)

	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spot_skycache_misses_total",
			Help: "Sky frame cache misses.",
		},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spot_skycache_evictions_total",
			Help: "Sky frames evicted after expiry.",
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spot_skycache_entries",
			Help: "Sky frames currently cached.",
		},
	)

	cacheSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spot_skycache_size_bytes",
			Help: "Estimated memory held by cached sky frames.",
		},
	)

	cacheRegenerationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spot_skycache_regeneration_seconds",
			Help:    "Duration of sky frame generation passes.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	cacheRegenerationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spot_skycache_regeneration_errors_total",
			Help: "Failed sky frame generation passes.",
		},
	)

	cacheGraceActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spot_skycache_grace_period_active",
			Help: "1 while stale frames are served during a catalog cutover.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spot_stream_connections_total",
			Help: "Stream connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spot_streams_active",
			Help: "Currently connected stream clients.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spot_stream_messages_total",
			Help: "Sky frames sent to stream clients.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spot_stream_bytes_total",
			Help: "Bytes written to stream clients.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spot_stream_errors_total",
			Help: "Stream failures by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		visibilityComputationsTotal,
		visibilityBatchSeconds,
		visibilityBatchTargets,
		crossingFallbacksTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheEntries,
		cacheSizeBytes,
		cacheRegenerationSeconds,
		cacheRegenerationErrors,
		cacheGraceActive,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
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

// IncVisibilityComputations counts one per-target computation with
// status "ok" or "error".
func IncVisibilityComputations(status string) {
	visibilityComputationsTotal.WithLabelValues(status).Inc()
}

// ObserveVisibilityBatch records one batch computation.
func ObserveVisibilityBatch(d time.Duration, targets int) {
	visibilityBatchSeconds.Observe(d.Seconds())
	visibilityBatchTargets.Observe(float64(targets))
}

// IncCrossingFallbacks counts a dense-sampling fallback.
func IncCrossingFallbacks() {
	crossingFallbacksTotal.Inc()
}

// IncCacheHits counts a sky cache hit.
func IncCacheHits() { cacheHitsTotal.Inc() }

// IncCacheMisses counts a sky cache miss.
func IncCacheMisses() { cacheMissesTotal.Inc() }

// AddCacheEvictions adds n evicted frames.
func AddCacheEvictions(n int) { cacheEvictionsTotal.Add(float64(n)) }

// SetCacheEntries records the current cached frame count.
func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }

// SetCacheSizeBytes records the estimated cache memory footprint.
func SetCacheSizeBytes(n int64) { cacheSizeBytes.Set(float64(n)) }

// ObserveCacheRegenerationDuration records one generation pass.
func ObserveCacheRegenerationDuration(d time.Duration) {
	cacheRegenerationSeconds.Observe(d.Seconds())
}

// IncCacheRegenerationErrors counts a failed generation pass.
func IncCacheRegenerationErrors() { cacheRegenerationErrors.Inc() }

// SetCacheGracePeriodActive flags whether stale frames are being served
// during a catalog cutover.
func SetCacheGracePeriodActive(active bool) {
	if active {
		cacheGraceActive.Set(1)
	} else {
		cacheGraceActive.Set(0)
	}
}

// IncStreamConnections counts a "connect" or "disconnect" event.
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

// IncStreamsActive increments the active stream gauge.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive decrements the active stream gauge.
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamMessages counts one frame sent to a client.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// AddStreamBytes adds bytes written to a client.
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamErrors counts a stream failure by reason.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}
