package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrap(h http.Handler, chain ...func(http.Handler) http.Handler) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

func TestPanicBecomesAPIError(t *testing.T) {
	h := wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("oven on fire")
	}), Chain(nil)...)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/menu", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "internal_error", body.Code)
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, body.RequestID, rec.Header().Get("X-Request-ID"))
}

func TestSuccessEnvelope(t *testing.T) {
	h := wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteAPIStatus(w, r, http.StatusCreated, map[string]int{"count": 2})
	}), RequestID)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"count":2},"request_id":"req-1"}`, rec.Body.String())
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2"), "buckets are per client")

	rl.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 2, rl.Sweep(time.Minute))
}

func TestParseJSONRequest(t *testing.T) {
	var v struct {
		ItemID int `json:"itemId"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"itemId": 3}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	require.NoError(t, ParseJSONRequest(req, &v))
	assert.Equal(t, 3, v.ItemID)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"itemId": 3, "extra": true}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Error(t, ParseJSONRequest(req, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`itemId=3`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Error(t, ParseJSONRequest(req, &v))
}
