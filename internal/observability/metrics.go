package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets     = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	upstreamDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets         = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the portal.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Search metrics
	SearchRequestsTotal   *prometheus.CounterVec
	SearchDuration        prometheus.Histogram
	SearchIndexesQueried  prometheus.Histogram
	IndexCacheHitsTotal   prometheus.Counter
	IndexCacheMissesTotal prometheus.Counter
	IndexCacheStaleServed prometheus.Counter

	// Form metrics
	SessionsStartedTotal     prometheus.Counter
	SessionsActive           prometheus.Gauge
	SessionsExpiredTotal     prometheus.Counter
	PageAdvancesTotal        *prometheus.CounterVec
	ValidationFailuresTotal  *prometheus.CounterVec
	SubmissionsTotal         *prometheus.CounterVec
	SubmissionDuration       prometheus.Histogram
	UploadedFileSizeBytes    prometheus.Histogram

	// CMS metrics
	CMSRequestsTotal   *prometheus.CounterVec
	CMSRequestDuration *prometheus.HistogramVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Search
		SearchRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_search_requests_total",
			Help: "Total number of search aggregation requests.",
		}, []string{"status"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_search_duration_seconds",
			Help:    "Search fan-out duration in seconds.",
			Buckets: upstreamDurationBuckets,
		}),
		SearchIndexesQueried: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_search_indexes_queried",
			Help:    "Number of indexes covered by one batched search.",
			Buckets: []float64{1, 2, 3, 5, 10, 20},
		}),
		IndexCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_index_cache_hits_total",
			Help: "Total index cache hits.",
		}),
		IndexCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_index_cache_misses_total",
			Help: "Total index cache misses that triggered discovery.",
		}),
		IndexCacheStaleServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_index_cache_stale_served_total",
			Help: "Times a stale index list was served after failed discovery.",
		}),

		// Forms
		SessionsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_form_sessions_started_total",
			Help: "Total number of form wizard sessions started.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_form_sessions_active",
			Help: "Number of live form wizard sessions.",
		}),
		SessionsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_form_sessions_expired_total",
			Help: "Total number of form wizard sessions expired by the sweeper.",
		}),
		PageAdvancesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_form_page_advances_total",
			Help: "Total wizard page navigation attempts.",
		}, []string{"direction", "outcome"}),
		ValidationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_form_validation_failures_total",
			Help: "Total field validation failures.",
		}, []string{"field_type"}),
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_form_submissions_total",
			Help: "Total form submissions.",
		}, []string{"outcome"}),
		SubmissionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_form_submission_duration_seconds",
			Help:    "Form submission duration in seconds.",
			Buckets: upstreamDurationBuckets,
		}),
		UploadedFileSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_form_uploaded_file_size_bytes",
			Help:    "Size of uploaded files in bytes.",
			Buckets: bodySizeBuckets,
		}),

		// CMS
		CMSRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_cms_requests_total",
			Help: "Total number of CMS requests.",
		}, []string{"operation", "status"}),
		CMSRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_cms_request_duration_seconds",
			Help:    "CMS request duration in seconds.",
			Buckets: upstreamDurationBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Search
		m.SearchRequestsTotal,
		m.SearchDuration,
		m.SearchIndexesQueried,
		m.IndexCacheHitsTotal,
		m.IndexCacheMissesTotal,
		m.IndexCacheStaleServed,
		// Forms
		m.SessionsStartedTotal,
		m.SessionsActive,
		m.SessionsExpiredTotal,
		m.PageAdvancesTotal,
		m.ValidationFailuresTotal,
		m.SubmissionsTotal,
		m.SubmissionDuration,
		m.UploadedFileSizeBytes,
		// CMS
		m.CMSRequestsTotal,
		m.CMSRequestDuration,
	)

	return m
}

// --- Recording helpers ---
//
// All helpers are no-ops on a nil receiver so callers can hold an optional
// *Metrics without guarding every call site.

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordSearch records one search fan-out.
func (m *Metrics) RecordSearch(status string, duration time.Duration, indexesQueried int) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(status).Inc()
	m.SearchDuration.Observe(duration.Seconds())
	m.SearchIndexesQueried.Observe(float64(indexesQueried))
}

// RecordIndexCacheHit records an index cache hit.
func (m *Metrics) RecordIndexCacheHit() {
	if m == nil {
		return
	}
	m.IndexCacheHitsTotal.Inc()
}

// RecordIndexCacheMiss records an index cache miss.
func (m *Metrics) RecordIndexCacheMiss() {
	if m == nil {
		return
	}
	m.IndexCacheMissesTotal.Inc()
}

// RecordIndexCacheStale records a stale index list served after a failed
// discovery.
func (m *Metrics) RecordIndexCacheStale() {
	if m == nil {
		return
	}
	m.IndexCacheStaleServed.Inc()
}

// RecordSessionStarted records a new wizard session.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStartedTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnded records a session leaving the store for any reason.
func (m *Metrics) RecordSessionEnded() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// RecordSessionsExpired records sessions removed on expiry.
func (m *Metrics) RecordSessionsExpired(count int) {
	if m == nil || count == 0 {
		return
	}
	m.SessionsExpiredTotal.Add(float64(count))
	m.SessionsActive.Sub(float64(count))
}

// RecordPageAdvance records a wizard navigation attempt.
func (m *Metrics) RecordPageAdvance(direction, outcome string) {
	if m == nil {
		return
	}
	m.PageAdvancesTotal.WithLabelValues(direction, outcome).Inc()
}

// RecordValidationFailure records one failed field validation.
func (m *Metrics) RecordValidationFailure(fieldType string) {
	if m == nil {
		return
	}
	m.ValidationFailuresTotal.WithLabelValues(fieldType).Inc()
}

// RecordSubmission records a form submission outcome.
func (m *Metrics) RecordSubmission(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
	m.SubmissionDuration.Observe(duration.Seconds())
}

// RecordUpload records an uploaded file's size.
func (m *Metrics) RecordUpload(sizeBytes int64) {
	if m == nil {
		return
	}
	m.UploadedFileSizeBytes.Observe(float64(sizeBytes))
}

// RecordCMSRequest records one CMS call. A status of 0 means the request
// never completed.
func (m *Metrics) RecordCMSRequest(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.CMSRequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.CMSRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
