package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCSRFStore(t *testing.T) {
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	s := NewCSRFStore()
	s.now = func() time.Time { return now }

	sid := NewSessionID()
	tok := s.Issue(sid)
	assert.Equal(t, tok, s.Issue(sid), "a live token is reused")
	assert.True(t, s.Validate(sid, tok))
	assert.True(t, s.Validate(sid, tok), "tokens are not consumed")
	assert.False(t, s.Validate(NewSessionID(), tok))
	assert.False(t, s.Validate(sid, ""))

	now = now.Add(csrfTokenTTL)
	assert.False(t, s.Validate(sid, tok))
	assert.Equal(t, 1, s.CleanExpiredTokens())
	assert.NotEqual(t, tok, s.Issue(sid))

	s.Forget(sid)
	assert.Equal(t, 0, s.CleanExpiredTokens())
}

func TestSessionIDsAndBearer(t *testing.T) {
	assert.True(t, ValidSessionID(NewSessionID()))
	assert.False(t, ValidSessionID("../../etc"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(r))
	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(r))
	r.Header.Set("Authorization", "Basic Zm9v")
	assert.Empty(t, BearerToken(r))
}

func TestCORS(t *testing.T) {
	h := CORS("https://warmdelights.test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/cart", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://warmdelights.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
