package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)
	return m, reg
}

func TestInitMetrics_registersAllMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)
	if m == nil {
		t.Fatal("InitMetrics returned nil")
	}

	expected := []string{
		"reportal_http_requests_total",
		"reportal_http_request_duration_seconds",
		"reportal_http_request_size_bytes",
		"reportal_http_response_size_bytes",
		"reportal_store_operations_total",
		"reportal_store_operation_duration_seconds",
		"reportal_config_saves_total",
		"reportal_submissions_total",
		"reportal_hierarchy_fetches_total",
		"reportal_offices_listed",
		"reportal_classification_cache_hits_total",
		"reportal_classification_cache_misses_total",
		"reportal_seed_applies_total",
		"reportal_seed_forms_saved_total",
		"reportal_categories_created_total",
	}

	// Record a value for each vector so it appears in Gather.
	m.RecordHTTPRequest("GET", "/test", 200, time.Millisecond, 0, 100)
	m.RecordStoreOperation("primary", "get", OutcomeOK, time.Millisecond)
	m.RecordConfigSave(OutcomeOK)
	m.RecordSubmission(OutcomeOK)
	m.RecordHierarchyFetch(OutcomeOK, 3)
	m.RecordClassificationCacheHit()
	m.RecordClassificationCacheMiss()
	m.RecordSeedApply("success", 2, 1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/ui/forms/{categoryId}", 200, 50*time.Millisecond, 0, 1024)
	m.RecordHTTPRequest("GET", "/ui/forms/{categoryId}", 200, 100*time.Millisecond, 0, 2048)
	m.RecordHTTPRequest("POST", "/ui/forms/{categoryId}/submissions", 500, 200*time.Millisecond, 512, 256)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ui/forms/{categoryId}", "200"))
	if val != 2 {
		t.Errorf("GET requests = %v, want 2", val)
	}
	val = testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/ui/forms/{categoryId}/submissions", "500"))
	if val != 1 {
		t.Errorf("POST requests = %v, want 1", val)
	}
}

func TestRecordStoreOperation(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordStoreOperation("primary", "commit", OutcomeOK, 5*time.Millisecond)
	m.RecordStoreOperation("mirror", "commit", OutcomeError, 5*time.Millisecond)
	m.RecordStoreOperation("mirror", "commit", OutcomeError, 5*time.Millisecond)

	if v := testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("primary", "commit", OutcomeOK)); v != 1 {
		t.Errorf("primary commits = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("mirror", "commit", OutcomeError)); v != 2 {
		t.Errorf("mirror commit errors = %v, want 2", v)
	}
	if n := testutil.CollectAndCount(m.StoreOperationDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestRecordDomainCounters(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordConfigSave(OutcomeOK)
	m.RecordConfigSave(OutcomeValidation)
	m.RecordSubmission(OutcomeOK)
	m.RecordSubmission(OutcomeOK)
	m.RecordCategoryCreated()

	if v := testutil.ToFloat64(m.ConfigSavesTotal.WithLabelValues(OutcomeValidation)); v != 1 {
		t.Errorf("validation saves = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues(OutcomeOK)); v != 2 {
		t.Errorf("submissions = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.CategoriesCreated); v != 1 {
		t.Errorf("categories created = %v, want 1", v)
	}
}

func TestRecordHierarchyFetch(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordHierarchyFetch(OutcomeOK, 12)
	m.RecordHierarchyFetch(OutcomeError, 0)

	if v := testutil.ToFloat64(m.OfficesListed); v != 12 {
		t.Errorf("offices listed = %v, want 12 (errors keep the last value)", v)
	}
	if v := testutil.ToFloat64(m.HierarchyFetchesTotal.WithLabelValues(OutcomeError)); v != 1 {
		t.Errorf("failed fetches = %v, want 1", v)
	}
}

func TestRecordClassificationCache(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordClassificationCacheHit()
	m.RecordClassificationCacheHit()
	m.RecordClassificationCacheMiss()

	if v := testutil.ToFloat64(m.ClassificationCacheHitsTotal); v != 2 {
		t.Errorf("hits = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.ClassificationCacheMissesTotal); v != 1 {
		t.Errorf("misses = %v, want 1", v)
	}
}

func TestRecordSeedApply(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordSeedApply("success", 6, 2)
	m.RecordSeedApply("failure", 0, 0)

	if v := testutil.ToFloat64(m.SeedAppliesTotal.WithLabelValues("success")); v != 1 {
		t.Errorf("successful applies = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.CategoriesCreated); v != 6 {
		t.Errorf("categories created = %v, want 6", v)
	}
	if v := testutil.ToFloat64(m.SeedFormsSaved); v != 2 {
		t.Errorf("forms saved = %v, want 2", v)
	}
}

func TestNilMetrics_recordsNothing(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond, 0, 0)
	m.RecordStoreOperation("primary", "get", OutcomeOK, time.Millisecond)
	m.RecordConfigSave(OutcomeOK)
	m.RecordSubmission(OutcomeOK)
	m.RecordHierarchyFetch(OutcomeOK, 1)
	m.RecordClassificationCacheHit()
	m.RecordClassificationCacheMiss()
	m.RecordSeedApply("success", 1, 1)
	m.RecordCategoryCreated()
}

func TestMetricsMiddleware_recordsRequestMetrics(t *testing.T) {
	m, _ := newTestMetrics(t)

	// Build a chi router so route patterns are captured.
	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/ui/forms/{categoryId}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/ui/forms/daily-cash", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// Verify metrics were recorded with the route pattern, not the actual path.
	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ui/forms/{categoryId}", "200"))
	if val != 1 {
		t.Errorf("requests total = %v, want 1", val)
	}
}

func TestMetricsMiddleware_capturesResponseSize(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("healthy"))
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	// Response size should have been recorded.
	count := testutil.CollectAndCount(m.HTTPResponseSizeBytes)
	if count == 0 {
		t.Error("expected response size histogram to have observations")
	}
}

func TestMetricsMiddleware_capturesStatusCode(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Post("/ui/forms/{categoryId}/submissions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/ui/forms/daily-cash/submissions", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/ui/forms/{categoryId}/submissions", "400"))
	if val != 1 {
		t.Errorf("400 requests = %v, want 1", val)
	}
}

func TestMetricsMiddleware_fallsBackToPath(t *testing.T) {
	m, _ := newTestMetrics(t)

	// Use middleware directly without chi router.
	handler := m.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/raw/path", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Without chi, should fall back to raw path.
	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/raw/path", "200"))
	if val != 1 {
		t.Errorf("raw path requests = %v, want 1", val)
	}
}

func TestHandler_servesMetrics(t *testing.T) {
	handler := Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	// Prometheus handler should return at least go runtime metrics.
	if !strings.Contains(body, "go_") {
		t.Error("metrics response should contain go runtime metrics")
	}
}

func TestHistogramBuckets(t *testing.T) {
	// Verify bucket configurations are correct.
	if len(httpDurationBuckets) != 11 {
		t.Errorf("httpDurationBuckets length = %d, want 11", len(httpDurationBuckets))
	}
	if len(storeDurationBuckets) != 9 {
		t.Errorf("storeDurationBuckets length = %d, want 9", len(storeDurationBuckets))
	}
	if len(bodySizeBuckets) != 5 {
		t.Errorf("bodySizeBuckets length = %d, want 5", len(bodySizeBuckets))
	}

	// Verify buckets are sorted ascending.
	for i := 1; i < len(httpDurationBuckets); i++ {
		if httpDurationBuckets[i] <= httpDurationBuckets[i-1] {
			t.Errorf("httpDurationBuckets not sorted at index %d", i)
		}
	}
}
