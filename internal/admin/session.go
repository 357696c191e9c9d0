// Package admin implements the dashboard side of the site: a single
// operator session, gallery management with local fallback, and analytics.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"warmdelights/internal/logger"
	"warmdelights/internal/storage"
)

const (
	SessionLimit   = 2 * time.Hour
	RenewalPrompt  = 105 * time.Minute
	flagAuthorized = "true"
)

var (
	ErrNotAuthenticated = errors.New("admin: not authenticated")
	ErrSessionExpired   = errors.New("admin: session expired")
	ErrInvalidToken     = errors.New("admin: invalid token")
)

// Status is a snapshot of the session clock.
type Status struct {
	Authenticated  bool          `json:"authenticated"`
	Expired        bool          `json:"expired"`
	LoginTime      time.Time     `json:"loginTime,omitempty"`
	Remaining      time.Duration `json:"remaining"`
	RenewalDue     bool          `json:"renewalDue"`
	TokenExpiresAt *time.Time    `json:"tokenExpiresAt,omitempty"`
}

// RemainingText renders the dashboard timer, e.g. "1h 12m left".
func (s Status) RemainingText() string {
	if !s.Authenticated {
		return "signed out"
	}
	mins := int(s.Remaining / time.Minute)
	return fmt.Sprintf("%dh %dm left", mins/60, mins%60)
}

// Session is the operator login state kept in the persistent store: a flag,
// the bearer token and the login time. There is one session per site.
type Session struct {
	mu       sync.Mutex
	store    storage.Store
	volatile storage.Store
	now      func() time.Time
}

// NewSession keeps login state in store; volatile holds the dashboard caches
// cleared on logout.
func NewSession(store, volatile storage.Store, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{store: store, volatile: volatile, now: now}
}

// Login starts a fresh two hour session for token.
func (s *Session) Login(ctx context.Context, token string) (Status, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Status{}, ErrInvalidToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := TokenExpiry(token); ok && !now.Before(exp) {
		return Status{}, fmt.Errorf("%w: token expired at %s", ErrInvalidToken, exp.Format(time.RFC3339))
	}
	for k, v := range map[string]string{
		storage.KeyAdminFlag:      flagAuthorized,
		storage.KeyAdminSession:   token,
		storage.KeyAdminLoginTime: now.UTC().Format(time.RFC3339Nano),
	} {
		if err := s.store.Set(ctx, k, v); err != nil {
			return Status{}, fmt.Errorf("saving admin session: %w", err)
		}
	}
	return s.check(ctx), nil
}

// Check reports the session state. An expired session is cleared as a forced
// logout.
func (s *Session) Check(ctx context.Context) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(ctx)
}

func (s *Session) check(ctx context.Context) Status {
	flag, _, _ := s.store.Get(ctx, storage.KeyAdminFlag)
	token, _, _ := s.store.Get(ctx, storage.KeyAdminSession)
	if flag != flagAuthorized || token == "" {
		return Status{}
	}

	now := s.now()
	rawLogin, ok, _ := s.store.Get(ctx, storage.KeyAdminLoginTime)
	login, err := time.Parse(time.RFC3339Nano, rawLogin)
	if !ok || err != nil {
		logger.LogWarn("Admin login time missing or corrupt, restarting session clock")
		login = now
		if err := s.store.Set(ctx, storage.KeyAdminLoginTime, now.UTC().Format(time.RFC3339Nano)); err != nil {
			logger.LogWarn("Failed to reset admin login time: %v", err)
		}
	}

	deadline := login.Add(SessionLimit)
	st := Status{Authenticated: true, LoginTime: login}
	if exp, ok := TokenExpiry(token); ok {
		st.TokenExpiresAt = &exp
		if exp.Before(deadline) {
			deadline = exp
		}
	}

	if now.Sub(login) > SessionLimit || (st.TokenExpiresAt != nil && !now.Before(*st.TokenExpiresAt)) {
		logger.LogInfo("Admin session expired (logged in %s)", login.Format(time.RFC3339))
		s.clear(ctx)
		return Status{Expired: true, LoginTime: login}
	}

	st.Remaining = deadline.Sub(now)
	if st.Remaining < 0 {
		st.Remaining = 0
	}
	st.RenewalDue = now.Sub(login) >= RenewalPrompt || st.Remaining <= SessionLimit-RenewalPrompt
	return st
}

// Extend restarts the session clock.
func (s *Session) Extend(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.check(ctx)
	switch {
	case st.Expired:
		return st, ErrSessionExpired
	case !st.Authenticated:
		return st, ErrNotAuthenticated
	}
	if err := s.store.Set(ctx, storage.KeyAdminLoginTime, s.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return st, fmt.Errorf("extending admin session: %w", err)
	}
	return s.check(ctx), nil
}

// Logout clears the session and the dashboard gallery cache.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear(ctx)
}

func (s *Session) clear(ctx context.Context) {
	if err := s.store.Remove(ctx, storage.KeyAdminFlag, storage.KeyAdminSession, storage.KeyAdminLoginTime); err != nil {
		logger.LogWarn("Failed to clear admin session: %v", err)
	}
	if s.volatile != nil {
		if err := s.volatile.Remove(ctx, storage.KeyAdminGalleryCache, storage.KeyAdminGalleryExpiry); err != nil {
			logger.LogWarn("Failed to clear admin gallery cache: %v", err)
		}
	}
}

// Token returns the stored bearer token, or "" when signed out.
func (s *Session) Token(ctx context.Context) string {
	token, _, err := s.store.Get(ctx, storage.KeyAdminSession)
	if err != nil {
		return ""
	}
	return token
}

// Authorize checks a presented bearer token against the live session.
func (s *Session) Authorize(ctx context.Context, presented string) (Status, error) {
	st := s.Check(ctx)
	switch {
	case st.Expired:
		return st, ErrSessionExpired
	case !st.Authenticated:
		return st, ErrNotAuthenticated
	}
	stored := s.Token(ctx)
	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return Status{}, ErrNotAuthenticated
	}
	return st, nil
}

// LooksLikeJWT matches the compact JWS form the backend issues.
func LooksLikeJWT(token string) bool {
	return strings.HasPrefix(token, "eyJ") && strings.Count(token, ".") == 2
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The backend is the one that verifies; this only drives the session timer.
func TokenExpiry(token string) (time.Time, bool) {
	if !LooksLikeJWT(token) {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
