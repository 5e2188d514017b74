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
	httpDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	storeDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
	bodySizeBuckets      = []float64{100, 1024, 10240, 102400, 1048576}
)

// Outcome label values.
const (
	OutcomeOK         = "ok"
	OutcomeError      = "error"
	OutcomeValidation = "validation"
	OutcomeNotFound   = "not_found"
	OutcomeConflict   = "conflict"
	OutcomeInFlight   = "in_flight"
	OutcomeReplayed   = "replayed"
)

// Metrics holds all Prometheus metric instruments for the portal. A nil
// *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Domain metrics
	ConfigSavesTotal      *prometheus.CounterVec
	SubmissionsTotal      *prometheus.CounterVec
	HierarchyFetchesTotal *prometheus.CounterVec
	OfficesListed         prometheus.Gauge

	// Cache metrics
	ClassificationCacheHitsTotal   prometheus.Counter
	ClassificationCacheMissesTotal prometheus.Counter

	// System metrics
	SeedAppliesTotal  *prometheus.CounterVec
	SeedFormsSaved    prometheus.Counter
	CategoriesCreated prometheus.Counter
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reportal_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reportal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reportal_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reportal_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Store
		StoreOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reportal_store_operations_total",
			Help: "Total document store operations by backend.",
		}, []string{"backend", "operation", "outcome"}),
		StoreOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reportal_store_operation_duration_seconds",
			Help:    "Document store operation duration in seconds.",
			Buckets: storeDurationBuckets,
		}, []string{"backend", "operation"}),

		// Domain
		ConfigSavesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reportal_config_saves_total",
			Help: "Total page configuration saves.",
		}, []string{"outcome"}),
		SubmissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reportal_submissions_total",
			Help: "Total report submissions.",
		}, []string{"outcome"}),
		HierarchyFetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reportal_hierarchy_fetches_total",
			Help: "Total location hierarchy fetches.",
		}, []string{"outcome"}),
		OfficesListed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reportal_offices_listed",
			Help: "Number of offices in the last hierarchy fetch.",
		}),

		// Cache
		ClassificationCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reportal_classification_cache_hits_total",
			Help: "Total office classification cache hits.",
		}),
		ClassificationCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reportal_classification_cache_misses_total",
			Help: "Total office classification cache misses.",
		}),

		// System
		SeedAppliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reportal_seed_applies_total",
			Help: "Total seed applications.",
		}, []string{"status"}),
		SeedFormsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reportal_seed_forms_saved_total",
			Help: "Total page configurations saved from seed files.",
		}),
		CategoriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reportal_categories_created_total",
			Help: "Total categories created.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Store
		m.StoreOperationsTotal,
		m.StoreOperationDuration,
		// Domain
		m.ConfigSavesTotal,
		m.SubmissionsTotal,
		m.HierarchyFetchesTotal,
		m.OfficesListed,
		// Cache
		m.ClassificationCacheHitsTotal,
		m.ClassificationCacheMissesTotal,
		// System
		m.SeedAppliesTotal,
		m.SeedFormsSaved,
		m.CategoriesCreated,
	)

	return m
}

// --- Recording helpers ---

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

// RecordStoreOperation records one document store call.
func (m *Metrics) RecordStoreOperation(backend, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StoreOperationsTotal.WithLabelValues(backend, operation, outcome).Inc()
	m.StoreOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordConfigSave records a page configuration save.
func (m *Metrics) RecordConfigSave(outcome string) {
	if m == nil {
		return
	}
	m.ConfigSavesTotal.WithLabelValues(outcome).Inc()
}

// RecordSubmission records a report submission.
func (m *Metrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordHierarchyFetch records a hierarchy fetch and, on success, the number
// of offices it returned.
func (m *Metrics) RecordHierarchyFetch(outcome string, offices int) {
	if m == nil {
		return
	}
	m.HierarchyFetchesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.OfficesListed.Set(float64(offices))
	}
}

// RecordClassificationCacheHit records a classification cache hit.
func (m *Metrics) RecordClassificationCacheHit() {
	if m == nil {
		return
	}
	m.ClassificationCacheHitsTotal.Inc()
}

// RecordClassificationCacheMiss records a classification cache miss.
func (m *Metrics) RecordClassificationCacheMiss() {
	if m == nil {
		return
	}
	m.ClassificationCacheMissesTotal.Inc()
}

// RecordSeedApply records a seed application.
func (m *Metrics) RecordSeedApply(status string, categoriesCreated, formsSaved int) {
	if m == nil {
		return
	}
	m.SeedAppliesTotal.WithLabelValues(status).Inc()
	m.CategoriesCreated.Add(float64(categoriesCreated))
	m.SeedFormsSaved.Add(float64(formsSaved))
}

// RecordCategoryCreated records a category created through the API.
func (m *Metrics) RecordCategoryCreated() {
	if m == nil {
		return
	}
	m.CategoriesCreated.Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

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

// statusRecorder wraps http.ResponseWriter to capture status and bytes for
// the metrics and tracing middleware.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
