// Package integration provides a reusable test harness for end-to-end
// testing of the portal server. It starts a full HTTP server over in-memory
// stores, a seeded category tree, an imported location table and a test JWT
// issuer.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/pitabwire/reportal/internal/apidoc"
	"github.com/pitabwire/reportal/internal/app"
	"github.com/pitabwire/reportal/internal/config"
	"github.com/pitabwire/reportal/internal/location"
	"github.com/pitabwire/reportal/internal/observability"
	"github.com/pitabwire/reportal/internal/transport"
)

// TestHarness encapsulates a fully wired portal instance.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	// App exposes the services for assertions that bypass HTTP.
	App *app.App
	// PolicyFile is a private copy of the access policy that tests may
	// rewrite before calling the sync endpoint.
	PolicyFile string

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	seedDirs       []string
	policyFile     string
	locationsFile  string
	handlerTimeout time.Duration
}

// WithSeed replaces the seed directories applied at startup.
func WithSeed(dirs ...string) HarnessOption {
	return func(c *harnessConfig) { c.seedDirs = dirs }
}

// WithPolicyFile sets the access policy copied into the harness.
func WithPolicyFile(path string) HarnessOption {
	return func(c *harnessConfig) { c.policyFile = path }
}

// WithLocations sets the spreadsheet imported into the location table. An
// empty path leaves the table empty.
func WithLocations(path string) HarnessOption {
	return func(c *harnessConfig) { c.locationsFile = path }
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) { c.handlerTimeout = d }
}

// NewTestHarness creates and starts a full portal instance. The server is
// cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	dir := testdataDir()
	hc := &harnessConfig{
		seedDirs:       []string{filepath.Join(dir, "seed")},
		policyFile:     filepath.Join(dir, "policy.yaml"),
		locationsFile:  filepath.Join(dir, "locations.csv"),
		handlerTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(hc)
	}

	ctx := context.Background()
	h := &TestHarness{t: t}

	// Step 1: Token issuer and shared secret.
	h.issuer = newTokenIssuer(t)
	t.Setenv(testHMACSecretEnv, testHMACSecret)

	// Step 2: Private policy copy.
	h.PolicyFile = filepath.Join(t.TempDir(), "policy.yaml")
	data, err := os.ReadFile(hc.policyFile)
	if err != nil {
		t.Fatalf("read policy %s: %v", hc.policyFile, err)
	}
	if err := os.WriteFile(h.PolicyFile, data, 0o644); err != nil {
		t.Fatalf("write policy copy: %v", err)
	}

	// Step 3: Config.
	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h.cfg.Identity.Issuer = h.issuer.issuer
	h.cfg.Identity.Audience = h.issuer.audience
	h.cfg.Identity.JWKSURL = h.issuer.JWKSURL()
	h.cfg.Identity.HMACSecretEnv = testHMACSecretEnv
	h.cfg.Identity.Algorithms = []string{"RS256", "HS256"}
	h.cfg.Access.PolicyFile = h.PolicyFile
	h.cfg.Observability.Metrics.Enabled = false
	if err := h.cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	// Step 4: Services.
	h.App, err = app.New(ctx, h.cfg, nil, nil)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(h.App.Close)

	// Step 5: Location table.
	if hc.locationsFile != "" {
		f, err := os.Open(hc.locationsFile)
		if err != nil {
			t.Fatalf("open locations: %v", err)
		}
		records, err := location.ReadSpreadsheet(f, filepath.Base(hc.locationsFile))
		f.Close()
		if err != nil {
			t.Fatalf("read locations: %v", err)
		}
		if _, err := location.Import(ctx, h.App.Stores.Primary, records); err != nil {
			t.Fatalf("import locations: %v", err)
		}
	}

	// Step 6: Seed.
	if len(hc.seedDirs) > 0 {
		if _, err := h.App.Seed(ctx, hc.seedDirs, nil); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// Step 7: Router with the production middleware chain.
	doc, err := apidoc.Load(ctx)
	if err != nil {
		t.Fatalf("apidoc.Load: %v", err)
	}
	jwks := transport.NewJWKSClient(h.issuer.JWKSURL(), time.Hour, nil)
	router := transport.NewRouter(transport.Dependencies{
		Config:       h.cfg,
		Authenticate: transport.JWTAuthenticator(h.cfg.Identity, transport.NewKeyfunc(jwks, h.cfg.Identity.HMACSecret())),
		Access:       h.App.Access,
		Policy:       h.App.Policy,
		Categories:   h.App.Categories,
		Configs:      h.App.Configs,
		Locations:    h.App.Locations,
		LocationDocs: h.App.Stores.Primary,
		Classifier:   h.App.Classifier,
		Runtime:      h.App.Runtime,
		Submissions:  h.App.Submissions,
		Idempotency:  h.App.Idempotency,
		Reports:      h.App.Reports,
		Readiness: observability.ReadinessChecks{
			Primary:      h.App.Stores.Primary,
			Mirror:       h.App.Stores.Mirror,
			AccessPolicy: h.App.Policy,
		},
		APIDoc: doc,
	})

	// Step 8: Start test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid RS256 token for claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates an RS256 token that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// GenerateHMACToken creates a valid HS256 token for claims.
func (h *TestHarness) GenerateHMACToken(claims TestClaims) string {
	return h.issuer.GenerateHMACToken(claims)
}

// --- HTTP client helpers ---

func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.Do("GET", path, nil, token, nil)
}

func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.Do("POST", path, body, token, nil)
}

func (h *TestHarness) PUT(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.Do("PUT", path, body, token, nil)
}

// Do performs a request with an optional JSON body and extra headers.
func (h *TestHarness) Do(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return h.send(req, token)
}

// Upload posts a file as the multipart field "file".
func (h *TestHarness) Upload(path, filename string, content []byte, token string) *http.Response {
	h.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		h.t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		h.t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		h.t.Fatalf("close multipart: %v", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), "POST", h.server.URL+path, &buf)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.send(req, token)
}

func (h *TestHarness) send(req *http.Request, token string) *http.Response {
	h.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// AssertStatus checks the status code and closes the body.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks the status code and parses the body into target.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// --- Default test claims ---

// AdminClaims returns claims for a portal administrator.
func AdminClaims() TestClaims {
	return TestClaims{
		SubjectID: "admin-1",
		Email:     "admin@portal.example.com",
		Roles:     []string{"admin"},
	}
}

// GuluClerkClaims returns claims for a clerk whose office comes from the
// policy file.
func GuluClerkClaims() TestClaims {
	return TestClaims{
		SubjectID: "clerk-gulu",
		Email:     "gulu@portal.example.com",
		Roles:     []string{"clerk"},
	}
}

// MbaleClerkClaims returns claims for a clerk whose office is carried in the
// token.
func MbaleClerkClaims() TestClaims {
	return TestClaims{
		SubjectID: "clerk-mbale",
		Email:     "mbale@portal.example.com",
		Roles:     []string{"clerk"},
		Offices:   []string{"Mbale"},
	}
}

func testdataDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata")
}
