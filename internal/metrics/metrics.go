// Package metrics provides Prometheus metrics for the medley server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medley_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medley_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	contentBytesStreamed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medley_content_bytes_streamed_total",
			Help: "Total bytes streamed from the content endpoint",
		},
	)

	contentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medley_content_requests_total",
			Help: "Total content requests by HTTP status",
		},
		[]string{"status"},
	)

	indexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medley_index_elements",
			Help: "Number of elements in the media index",
		},
	)

	indexSweepRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medley_index_sweep_removed_total",
			Help: "Total elements removed by index sweeps",
		},
	)

	podcastCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medley_podcast_cache_lookups_total",
			Help: "Podcast cache lookups by result",
		},
		[]string{"result"},
	)

	feedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medley_feed_fetch_duration_seconds",
			Help:    "RSS feed fetch and parse duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	browseChildrenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medley_browse_children_total",
			Help: "Total child listing requests served",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordContentRequest records a content request outcome and bytes sent.
func RecordContentRequest(status int, bytes int64) {
	contentRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	if bytes > 0 {
		contentBytesStreamed.Add(float64(bytes))
	}
}

// SetIndexSize sets the current media index size.
func SetIndexSize(size int) {
	indexSize.Set(float64(size))
}

// RecordSweep records the result of an index sweep.
func RecordSweep(removed int) {
	indexSweepRemoved.Add(float64(removed))
}

// RecordPodcastCacheLookup records a podcast cache hit or miss.
func RecordPodcastCacheLookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	podcastCacheLookups.WithLabelValues(result).Inc()
}

// RecordFeedFetch records an RSS fetch duration and outcome.
func RecordFeedFetch(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	feedFetchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordBrowse records one child listing request.
func RecordBrowse() {
	browseChildrenTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
