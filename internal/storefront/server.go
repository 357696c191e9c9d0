package storefront

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"warmdelights/internal/admin"
	"warmdelights/internal/backend"
	"warmdelights/internal/logger"
	"warmdelights/internal/middleware"
	"warmdelights/internal/security"
)

const healthTimeout = 3 * time.Second

// TokenValidator asks the backend whether an operator token is accepted.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) error
}

type HealthChecker interface {
	Health(ctx context.Context) (backend.Health, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerOptions wires the HTTP surface to the storefront and dashboard.
type ServerOptions struct {
	Sessions      *Sessions
	CSRF          *security.CSRFStore
	Limiter       *middleware.RateLimiter
	AllowedOrigin string
	SecureCookies bool

	Admin      *admin.Session
	Dashboard  *admin.Dashboard
	AdminToken string
	Validator  TokenValidator

	Backend HealthChecker
	DB      Pinger
}

type Server struct {
	opts ServerOptions
}

func NewServer(o ServerOptions) *Server {
	if o.CSRF == nil {
		o.CSRF = security.NewCSRFStore()
	}
	return &Server{opts: o}
}

// Routes builds the router: the public API under /api, the dashboard API
// under /admin/api and the health probe.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Chain(s.opts.Limiter)...)
	r.Use(security.CORS(s.opts.AllowedOrigin))

	r.Get("/healthz", s.handleHealth)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "not_found", "Resource not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteAPIError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", "")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.visitorSession, s.requireCSRF)
		s.RegisterRoutes(r)
	})
	if s.opts.Admin != nil && s.opts.Dashboard != nil {
		r.Route("/admin/api", s.RegisterAdminRoutes)
	}
	return r
}

// visitorSession attaches the visitor's Controller, minting a session when
// the cookie is missing, malformed or unknown.
func (s *Server) visitorSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(security.SessionCookie); err == nil && security.ValidSessionID(c.Value) {
			id = c.Value
		}
		if id != "" {
			if _, ok := s.opts.Sessions.Get(id); !ok {
				id = ""
			}
		}
		if id == "" {
			id = security.NewSessionID()
			s.opts.Sessions.Open(id)
			http.SetCookie(w, &http.Cookie{
				Name:     security.SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.opts.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithSessionID(r.Context(), id)))
	})
}

func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		sid := middleware.GetSessionID(r.Context())
		if !s.opts.CSRF.Validate(sid, r.Header.Get(security.CSRFHeader)) {
			logger.LogWarn("CSRF token missing or invalid for %s %s from %s", r.Method, r.URL.Path, logger.GetClientIP(r))
			middleware.WriteAPIError(w, r, http.StatusForbidden, "csrf_invalid",
				"Missing or invalid CSRF token", "fetch GET /api/session and send its token in "+security.CSRFHeader)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) controller(r *http.Request) *Controller {
	return s.opts.Sessions.Open(middleware.GetSessionID(r.Context()))
}

// requireAdmin checks the bearer token against the live operator session.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := s.opts.Admin.Authorize(r.Context(), security.BearerToken(r))
		switch {
		case errors.Is(err, admin.ErrSessionExpired):
			middleware.WriteAPIError(w, r, http.StatusUnauthorized, "session_expired",
				"Your session has expired. Please login again.", "")
			return
		case err != nil:
			middleware.WriteAPIError(w, r, http.StatusUnauthorized, "unauthorized", "Please login first", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthReport struct {
	Status   string `json:"status"`
	Backend  string `json:"backend"`
	Database string `json:"database"`
	Sessions int    `json:"sessions"`
}

// handleHealth reports degraded rather than failing when the backend is
// down; the storefront keeps serving from its fallbacks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	rep := healthReport{Status: "ok", Backend: "unknown", Database: "unknown"}
	if s.opts.Sessions != nil {
		rep.Sessions = s.opts.Sessions.Len()
	}
	if s.opts.Backend != nil {
		if h, err := s.opts.Backend.Health(ctx); err != nil {
			rep.Backend = "unavailable"
			rep.Status = "degraded"
		} else {
			rep.Backend = h.Status
		}
	}
	if s.opts.DB != nil {
		if err := s.opts.DB.Ping(ctx); err != nil {
			logger.LogError("Health check database ping failed: %v", err)
			middleware.WriteAPIError(w, r, http.StatusServiceUnavailable, "database_unavailable", "Database unavailable", "")
			return
		}
		rep.Database = "ok"
	}
	middleware.WriteAPISuccess(w, r, rep)
}
