// test_helpers.go - end-to-end suite wiring the site against a mock backend
package testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"warmdelights/internal/admin"
	"warmdelights/internal/analytics"
	"warmdelights/internal/backend"
	"warmdelights/internal/gallery"
	"warmdelights/internal/middleware"
	"warmdelights/internal/security"
	"warmdelights/internal/storage"
	"warmdelights/internal/storefront"
	"warmdelights/internal/whatsapp"
)

const TestAdminToken = "warm-delights-test-admin"

// TestConfig holds configuration for test runs
type TestConfig struct {
	DBPath         string
	TestDataDir    string
	AdminToken     string
	WhatsAppNumber string
	GalleryTTL     time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	AllowedOrigin  string
	SeedImages     []string
}

func defaultConfig() TestConfig {
	return TestConfig{
		AdminToken:     TestAdminToken,
		WhatsAppNumber: "919876543210",
		GalleryTTL:     10 * time.Minute,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		AllowedOrigin:  "https://warmdelights.example",
		SeedImages:     []string{"chocolate-cake.jpg", "red-velvet.jpg"},
	}
}

// TestSuite provides utilities for integration testing
type TestSuite struct {
	Config    TestConfig
	Backend   *MockBackend
	Server    *httptest.Server
	Client    *http.Client
	DB        *storage.SQLiteStore
	Events    *analytics.Log
	Mirror    *gallery.LocalMirror
	Sessions  *storefront.Sessions
	Admin     *admin.Session
	Dashboard *admin.Dashboard
}

// NewTestSuite builds the full site on a temporary SQLite database. configure
// may adjust the defaults before anything is wired.
func NewTestSuite(t *testing.T, configure ...func(*TestConfig)) *TestSuite {
	t.Helper()
	config := defaultConfig()
	for _, fn := range configure {
		fn(&config)
	}

	// Create unique temporary directory for each test run
	config.TestDataDir = t.TempDir()
	config.DBPath = filepath.Join(config.TestDataDir, fmt.Sprintf("test_%d.db", time.Now().UnixNano()))

	suite := &TestSuite{
		Config:  config,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Backend: NewMockBackend(config.AdminToken, config.SeedImages...),
	}
	t.Cleanup(suite.Cleanup)

	db, err := storage.OpenSQLite(config.DBPath)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	suite.DB = db

	suite.wire()
	return suite
}

func (ts *TestSuite) wire() {
	client := backend.New(ts.Backend.URL(), 5*time.Second)
	ts.Mirror = gallery.NewLocalMirror(ts.DB)
	ts.Events = analytics.NewLog(ts.DB, storage.KeyEvents, analytics.PersistentEventCap)

	ts.Sessions = storefront.NewSessions(storefront.Deps{
		Link:       whatsapp.Link{Number: ts.Config.WhatsAppNumber},
		BaseURL:    ts.Backend.URL(),
		Remote:     client,
		Views:      client,
		Contacts:   client,
		Pusher:     client,
		Mirror:     ts.Mirror,
		Events:     ts.Events,
		GalleryTTL: ts.Config.GalleryTTL,
		IdleAfter:  time.Hour,
	})

	volatile := storage.NewMemoryStore()
	ts.Admin = admin.NewSession(ts.DB, volatile, nil)
	ts.Dashboard = admin.NewDashboard(admin.Options{
		Session:      ts.Admin,
		Backend:      client,
		Remote:       client,
		Mirror:       ts.Mirror,
		Volatile:     volatile,
		Persistent:   ts.DB,
		Events:       ts.Events,
		Pusher:       client,
		Invalidator:  ts.Sessions,
		DefaultToken: ts.Config.AdminToken,
		GalleryTTL:   ts.Config.GalleryTTL,
	})

	server := storefront.NewServer(storefront.ServerOptions{
		Sessions:      ts.Sessions,
		Limiter:       middleware.NewRateLimiter(ts.Config.RateLimitRPS, ts.Config.RateLimitBurst),
		AllowedOrigin: ts.Config.AllowedOrigin,
		Admin:         ts.Admin,
		Dashboard:     ts.Dashboard,
		AdminToken:    ts.Config.AdminToken,
		Validator:     client,
		Backend:       client,
		DB:            ts.DB,
	})
	ts.Server = httptest.NewServer(server.Routes())
}

// Cleanup stops the servers, drains background pushes and closes the database
func (ts *TestSuite) Cleanup() {
	if ts.Server != nil {
		ts.Server.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ts.Sessions != nil {
		ts.Sessions.CloseAll(ctx)
	}
	if ts.Dashboard != nil {
		ts.Dashboard.Activities().Wait()
	}
	if ts.Backend != nil {
		ts.Backend.Close()
	}
	if ts.DB != nil {
		if err := ts.DB.Close(); err != nil {
			fmt.Printf("Warning: failed to close test database: %v\n", err)
		}
	}
}

// Reopen closes the database and opens it again from disk, rewiring every
// component on top of it, as a process restart would.
func (ts *TestSuite) Reopen(t *testing.T) {
	t.Helper()
	ts.Server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts.Sessions.CloseAll(ctx)
	ts.Dashboard.Activities().Wait()
	if err := ts.DB.Close(); err != nil {
		t.Fatalf("Failed to close database: %v", err)
	}

	db, err := storage.OpenSQLite(ts.Config.DBPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	ts.DB = db
	ts.wire()
}

// Envelope is either response shape: success with data, or an error code.
type Envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Details   string          `json:"details"`
	RequestID string          `json:"request_id"`
}

// Decode unmarshals the envelope's data into dest.
func (e Envelope) Decode(t *testing.T, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(e.Data, dest); err != nil {
		t.Fatalf("Failed to decode response data %s: %v", string(e.Data), err)
	}
}

// Visitor is one browser: a cookie jar plus the CSRF token and, for
// operators, the bearer token.
type Visitor struct {
	t     *testing.T
	suite *TestSuite
	http  *http.Client
	CSRF  string
	Token string
}

func (ts *TestSuite) NewVisitor(t *testing.T) *Visitor {
	t.Helper()
	jar, err := cookiejar.New(nil)
	ts.AssertNoError(t, err)
	return &Visitor{t: t, suite: ts, http: &http.Client{Jar: jar, Timeout: 30 * time.Second}}
}

// StartSession opens the visitor session and keeps its CSRF token.
func (v *Visitor) StartSession() {
	v.t.Helper()
	resp, env := v.Do(http.MethodGet, "/api/session", nil)
	v.suite.AssertStatusCode(v.t, resp, http.StatusOK)
	var data struct {
		CSRFToken string `json:"csrfToken"`
	}
	env.Decode(v.t, &data)
	if data.CSRFToken == "" {
		v.t.Fatal("Session response carried no CSRF token")
	}
	v.CSRF = data.CSRFToken
}

// Login signs the visitor in as the operator.
func (v *Visitor) Login(token string) (*http.Response, Envelope) {
	v.t.Helper()
	resp, env := v.Do(http.MethodPost, "/admin/api/login", map[string]string{"token": token})
	if resp.StatusCode == http.StatusOK {
		v.Token = token
	}
	return resp, env
}

// Do sends a JSON request. body may be nil.
func (v *Visitor) Do(method, path string, body interface{}) (*http.Response, Envelope) {
	v.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		v.suite.AssertNoError(v.t, err)
		reader = bytes.NewReader(raw)
	}
	return v.send(method, path, "application/json", reader, nil)
}

// Upload posts the files as a multipart form under field "images".
func (v *Visitor) Upload(files ...TestImage) (*http.Response, Envelope) {
	v.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("images", f.Name)
		v.suite.AssertNoError(v.t, err)
		_, err = part.Write(f.Data)
		v.suite.AssertNoError(v.t, err)
	}
	v.suite.AssertNoError(v.t, mw.Close())
	return v.send(http.MethodPost, "/admin/api/gallery", mw.FormDataContentType(), &buf, nil)
}

// DoWithHeaders sends a JSON request with extra headers.
func (v *Visitor) DoWithHeaders(method, path string, body interface{}, headers map[string]string) (*http.Response, Envelope) {
	v.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		v.suite.AssertNoError(v.t, err)
		reader = bytes.NewReader(raw)
	}
	return v.send(method, path, "application/json", reader, headers)
}

func (v *Visitor) send(method, path, contentType string, body io.Reader, headers map[string]string) (*http.Response, Envelope) {
	v.t.Helper()
	req, err := http.NewRequest(method, v.suite.Server.URL+path, body)
	v.suite.AssertNoError(v.t, err)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if v.CSRF != "" {
		req.Header.Set(security.CSRFHeader, v.CSRF)
	}
	if v.Token != "" {
		req.Header.Set("Authorization", "Bearer "+v.Token)
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := v.http.Do(req)
	v.suite.AssertNoError(v.t, err)
	defer resp.Body.Close()

	var env Envelope
	raw, err := io.ReadAll(resp.Body)
	v.suite.AssertNoError(v.t, err)
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			v.t.Fatalf("Response to %s %s is not JSON (%d): %s", method, path, resp.StatusCode, string(raw))
		}
	}
	return resp, env
}

// AssertStatusCode checks if response has expected status code
func (ts *TestSuite) AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d for %s %s", expected, resp.StatusCode, resp.Request.Method, resp.Request.URL.Path)
	}
}

// AssertNoError fails the test if error is not nil
func (ts *TestSuite) AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// AssertError fails the test if error is nil
func (ts *TestSuite) AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected error but got nil")
	}
}

// WaitForCondition waits for a condition to be true or timeout
func (ts *TestSuite) WaitForCondition(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return condition()
}

// WriteFixture writes data under the suite's temp directory.
func (ts *TestSuite) WriteFixture(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(ts.Config.TestDataDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", name, err)
	}
	return path
}
