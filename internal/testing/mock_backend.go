// mock_backend.go - in-process stand-in for the gallery/analytics backend
package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// MockBackend serves the subset of the backend API the site talks to.
type MockBackend struct {
	Server     *httptest.Server
	ValidToken string
	mu         sync.Mutex

	images []MockImage
	nextID int

	// Configuration for failure simulation
	ShouldFailImages     bool
	ShouldFailUpload     bool
	ShouldFailDelete     bool
	ShouldFailAnalytics  bool
	ShouldFailContact    bool
	ShouldRejectToken    bool
	SimulateNetworkDelay time.Duration

	// Counters for tracking
	ImageRequests  int
	UploadAttempts int
	DeleteAttempts int
	TrackedEvents  []string
	Views          map[string]int
	Contacts       int
}

type MockImage struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	UploadDate time.Time `json:"uploadDate"`
	Size       int64     `json:"size"`
}

// NewMockBackend starts the mock with the given admin token and seed images.
func NewMockBackend(token string, seed ...string) *MockBackend {
	mock := &MockBackend{ValidToken: token, Views: make(map[string]int)}
	for _, name := range seed {
		mock.addImage(name, 0)
	}

	r := chi.NewRouter()
	r.Get("/health", mock.handleHealth)
	r.Get("/api/menu", mock.handleMenu)
	r.Get("/api/images", mock.handleImages)
	r.Post("/api/images/{filename}/view", mock.handleView)
	r.Post("/api/analytics/track", mock.handleTrack)
	r.Post("/api/contact", mock.handleContact)
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(mock.requireToken)
		r.Get("/analytics", mock.handleAnalytics)
		r.Post("/gallery/upload", mock.handleUpload)
		r.Delete("/gallery/{id}", mock.handleDelete)
	})

	mock.Server = httptest.NewServer(r)
	return mock
}

// Close shuts down the mock server
func (m *MockBackend) Close() {
	m.Server.Close()
}

// URL returns the mock server's base URL
func (m *MockBackend) URL() string {
	return m.Server.URL
}

// Configure changes failure switches under the mock's lock.
func (m *MockBackend) Configure(fn func(m *MockBackend)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// Snapshot runs fn with the counters locked.
func (m *MockBackend) Snapshot(fn func(m *MockBackend)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *MockBackend) ImageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}

func (m *MockBackend) TrackedCount(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.TrackedEvents {
		if t == eventType {
			n++
		}
	}
	return n
}

// addImage must be called with mu held or before the server starts.
func (m *MockBackend) addImage(filename string, size int64) MockImage {
	m.nextID++
	img := MockImage{
		ID:         fmt.Sprintf("img-%d", m.nextID),
		Filename:   filename,
		URL:        "/uploads/" + filename,
		UploadDate: time.Now().UTC().Truncate(time.Second),
		Size:       size,
	}
	m.images = append(m.images, img)
	return img
}

// HTTP Handlers

// begin applies the configured delay and returns the switches it read.
func (m *MockBackend) begin(count func(m *MockBackend)) *MockBackend {
	m.mu.Lock()
	if count != nil {
		count(m)
	}
	snapshot := &MockBackend{
		ShouldFailImages:    m.ShouldFailImages,
		ShouldFailUpload:    m.ShouldFailUpload,
		ShouldFailDelete:    m.ShouldFailDelete,
		ShouldFailAnalytics: m.ShouldFailAnalytics,
		ShouldFailContact:   m.ShouldFailContact,
		ShouldRejectToken:   m.ShouldRejectToken,
	}
	delay := m.SimulateNetworkDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return snapshot
}

func (m *MockBackend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := m.begin(nil)
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if sw.ShouldRejectToken || token == "" || token != m.ValidToken {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *MockBackend) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMenu reports no menu, so the site keeps its bundled catalog.
func (m *MockBackend) handleMenu(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}

func (m *MockBackend) handleImages(w http.ResponseWriter, r *http.Request) {
	sw := m.begin(func(m *MockBackend) { m.ImageRequests++ })
	if sw.ShouldFailImages {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage offline"})
		return
	}

	m.mu.Lock()
	images := append([]MockImage(nil), m.images...)
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

func (m *MockBackend) handleView(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	m.begin(func(m *MockBackend) { m.Views[filename]++ })
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (m *MockBackend) handleTrack(w http.ResponseWriter, r *http.Request) {
	var ev struct {
		EventType string                 `json:"eventType"`
		Data      map[string]interface{} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	m.begin(func(m *MockBackend) { m.TrackedEvents = append(m.TrackedEvents, ev.EventType) })
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (m *MockBackend) handleContact(w http.ResponseWriter, r *http.Request) {
	sw := m.begin(func(m *MockBackend) { m.Contacts++ })
	if sw.ShouldFailContact {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "error": "mailer down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (m *MockBackend) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	sw := m.begin(nil)
	if sw.ShouldFailAnalytics {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "analytics unavailable"})
		return
	}

	m.mu.Lock()
	stats := map[string]int{
		"totalVisitors":  0,
		"todayVisitors":  0,
		"imageUploads":   len(m.images),
		"cartAdditions":  0,
		"whatsappOrders": 0,
	}
	for _, t := range m.TrackedEvents {
		switch t {
		case "page_visit":
			stats["totalVisitors"]++
			stats["todayVisitors"]++
		case "cart_add":
			stats["cartAdditions"]++
		case "whatsapp_order":
			stats["whatsappOrders"]++
		}
	}
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (m *MockBackend) handleUpload(w http.ResponseWriter, r *http.Request) {
	sw := m.begin(func(m *MockBackend) { m.UploadAttempts++ })
	if sw.ShouldFailUpload {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "disk full"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing image field"})
		return
	}
	defer file.Close()
	size, err := io.Copy(io.Discard, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	m.mu.Lock()
	img := m.addImage(header.Filename, size)
	m.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "image": img})
}

func (m *MockBackend) handleDelete(w http.ResponseWriter, r *http.Request) {
	sw := m.begin(func(m *MockBackend) { m.DeleteAttempts++ })
	if sw.ShouldFailDelete {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "delete failed"})
		return
	}

	id := chi.URLParam(r, "id")
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, img := range m.images {
		if img.ID == id || img.Filename == id {
			m.images = append(m.images[:i], m.images[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "image not found"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
