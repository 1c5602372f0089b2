// Package metrics exposes the dashboard's Prometheus instruments. Collectors are
// registered on the default registry at init and updated through small helper
// functions so callers never touch prometheus types directly.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitdash_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbitdash_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitdash_ticks_total",
			Help: "Scheduler ticks by outcome (ok, error, dropped).",
		},
		[]string{"result"},
	)

	tickDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbitdash_tick_duration_seconds",
			Help:    "Time spent building one telemetry frame.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	samplerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitdash_sampler_errors_total",
			Help: "Orbit sampler failures by reason.",
		},
		[]string{"reason"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbitdash_propagation_duration_seconds",
			Help:    "Duration of a single SGP4 propagation plus geodetic conversion.",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)

	samplerCacheRebuilds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitdash_sampler_cache_rebuilds_total",
			Help: "Number of times a sampler rebuilt its SGP4 model after a dataset change.",
		},
	)

	historySamples = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitdash_history_samples",
			Help: "Samples currently held in the rolling history buffer.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitdash_stream_connections_total",
			Help: "SSE connection events (connect, disconnect).",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitdash_streams_active",
			Help: "Currently open SSE streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitdash_stream_messages_total",
			Help: "SSE data messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitdash_stream_bytes_total",
			Help: "Bytes written to SSE streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitdash_stream_errors_total",
			Help: "SSE errors by reason.",
		},
		[]string{"reason"},
	)

	tleDatasetCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitdash_tle_dataset_count",
			Help: "Number of element sets in the current TLE dataset.",
		},
	)

	tleDatasetAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitdash_tle_dataset_age_seconds",
			Help: "Age of the current TLE dataset.",
		},
	)

	tleFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitdash_tle_fetches_total",
			Help: "TLE fetch attempts by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		ticksTotal,
		tickDurationSeconds,
		samplerErrorsTotal,
		propagationDurationSeconds,
		samplerCacheRebuilds,
		historySamples,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		tleDatasetCount,
		tleDatasetAgeSeconds,
		tleFetchesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/":                         true,
	"/healthz":                  true,
	"/readyz":                   true,
	"/metrics":                  true,
	"/index.html":               true,
	"/app.js":                   true,
	"/styles.css":               true,
	"/api/v1/telemetry/current": true,
	"/api/v1/telemetry/series":  true,
	"/api/v1/stream/telemetry":  true,
	"/api/v1/tle/metadata":      true,
	"/api/v1/tle/fetch":         true,
}

// normalizeRoute maps a request path to a bounded label set so bots probing
// random paths cannot blow up series cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/tle/bodies/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/tle/bodies/{body}"
	}
	return "other"
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

// Flush forwards to the wrapped writer so SSE works through the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Tick results.
const (
	TickOK      = "ok"
	TickError   = "error"
	TickDropped = "dropped"
)

func IncTicks(result string)              { ticksTotal.WithLabelValues(result).Inc() }
func ObserveTickDuration(d time.Duration) { tickDurationSeconds.Observe(d.Seconds()) }
func IncSamplerErrors(reason string)      { samplerErrorsTotal.WithLabelValues(reason).Inc() }
func ObservePropagation(d time.Duration)  { propagationDurationSeconds.Observe(d.Seconds()) }
func IncSamplerCacheRebuilds()            { samplerCacheRebuilds.Inc() }
func SetHistorySamples(n int)             { historySamples.Set(float64(n)) }
func IncStreamConnections(event string)   { streamConnectionsTotal.WithLabelValues(event).Inc() }
func IncStreamsActive()                   { streamsActive.Inc() }
func DecStreamsActive()                   { streamsActive.Dec() }
func IncStreamMessages()                  { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64)              { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string)       { streamErrorsTotal.WithLabelValues(reason).Inc() }
func SetTLEDatasetCount(n int)            { tleDatasetCount.Set(float64(n)) }
func SetTLEDatasetAge(seconds float64)    { tleDatasetAgeSeconds.Set(seconds) }
func IncTLEFetches(result string)         { tleFetchesTotal.WithLabelValues(result).Inc() }
