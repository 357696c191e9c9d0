// internal/security/security.go
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"warmdelights/internal/logger"
)

const (
	SessionCookie = "wd_session"
	CSRFHeader    = "X-CSRF-Token"
	csrfTokenTTL  = 2 * time.Hour
)

// NewSessionID returns a fresh visitor session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID rejects cookie values that are not ones we issued.
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

type csrfEntry struct {
	token   string
	expires time.Time
}

// CSRFStore issues one token per visitor session. Tokens stay valid until
// they expire or the session is reissued a token.
type CSRFStore struct {
	mu     sync.Mutex
	tokens map[string]csrfEntry
	now    func() time.Time
}

func NewCSRFStore() *CSRFStore {
	return &CSRFStore{tokens: make(map[string]csrfEntry), now: time.Now}
}

// Issue returns the session's token, minting one if it has none.
func (s *CSRFStore) Issue(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.tokens[sessionID]; ok && s.now().Before(e.expires) {
		return e.token
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// can't securely continue if randomness fails
		panic("Failed to generate CSRF token: " + err.Error())
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	s.tokens[sessionID] = csrfEntry{token: token, expires: s.now().Add(csrfTokenTTL)}
	return token
}

// Validate checks token against the session's current token.
func (s *CSRFStore) Validate(sessionID, token string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tokens[sessionID]
	if !ok || !s.now().Before(e.expires) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(e.token), []byte(token)) == 1
}

// Forget drops the token of an ended session.
func (s *CSRFStore) Forget(sessionID string) {
	s.mu.Lock()
	delete(s.tokens, sessionID)
	s.mu.Unlock()
}

// CleanExpiredTokens removes expired tokens and returns how many went.
func (s *CSRFStore) CleanExpiredTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for id, e := range s.tokens {
		if !now.Before(e.expires) {
			delete(s.tokens, id)
			removed++
		}
	}
	if removed > 0 {
		logger.LogInfo("CSRF token cleanup completed, %d expired", removed)
	}
	return removed
}

// CORS adds CORS headers and handles OPTIONS requests globally.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowedOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+CSRFHeader)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
