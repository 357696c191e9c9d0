package storefront

import (
	"crypto/subtle"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"warmdelights/internal/admin"
	"warmdelights/internal/backend"
	"warmdelights/internal/logger"
	"warmdelights/internal/middleware"
)

const (
	maxUploadFiles   = 10
	maxUploadRequest = maxUploadFiles*admin.MaxUploadSize + 1<<20
	multipartMemory  = 32 << 20
)

var errBackendUnavailable = errors.New("backend unavailable to validate token")

// RegisterAdminRoutes mounts the dashboard API. Everything but login needs a
// bearer token matching the live operator session.
func (s *Server) RegisterAdminRoutes(r chi.Router) {
	r.Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/logout", s.handleLogout)
		r.Get("/session", s.handleAdminSession)
		r.Post("/session/extend", s.handleExtend)

		r.Get("/gallery", s.handleAdminGallery)
		r.Post("/gallery", s.handleUpload)
		r.Post("/gallery/refresh", s.handleAdminRefresh)
		r.Delete("/gallery/{id}", s.handleDelete)

		r.Get("/analytics", s.handleAnalytics)
		r.Get("/visitors", s.handleVisitors)
		r.Get("/activities", s.handleActivities)
	})
}

type sessionView struct {
	admin.Status
	RemainingSeconds int64  `json:"remainingSeconds"`
	RemainingText    string `json:"remainingText"`
}

func viewOf(st admin.Status) sessionView {
	return sessionView{Status: st, RemainingSeconds: int64(st.Remaining.Seconds()), RemainingText: st.RemainingText()}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	token := strings.TrimSpace(req.Token)

	method, err := s.checkOperatorToken(r, token)
	switch {
	case errors.Is(err, errBackendUnavailable):
		middleware.WriteAPIError(w, r, http.StatusServiceUnavailable, "backend_unavailable",
			"Unable to verify the token right now. Please try again shortly.", "")
		return
	case err != nil:
		logger.LogWarn("Admin login rejected from %s", logger.GetClientIP(r))
		middleware.WriteAPIError(w, r, http.StatusUnauthorized, "invalid_token", "Invalid admin token", "")
		return
	}

	st, err := s.opts.Admin.Login(ctx, token)
	if errors.Is(err, admin.ErrInvalidToken) {
		middleware.WriteAPIError(w, r, http.StatusUnauthorized, "invalid_token", "Invalid admin token", err.Error())
		return
	}
	if err != nil {
		logger.LogError("Failed to start admin session: %v", err)
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "session_error", "Could not start session", "")
		return
	}

	s.opts.Dashboard.Activities().Record(ctx, "login", map[string]interface{}{"method": method})
	logger.LogInfo("Admin logged in from %s via %s", logger.GetClientIP(r), method)
	middleware.WriteAPISuccess(w, r, viewOf(st))
}

// checkOperatorToken accepts the configured admin token, or a backend JWT the
// backend does not reject.
func (s *Server) checkOperatorToken(r *http.Request, token string) (string, error) {
	if token == "" {
		return "", admin.ErrInvalidToken
	}
	if s.opts.AdminToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) == 1 {
		return "configured", nil
	}
	if !admin.LooksLikeJWT(token) || s.opts.Validator == nil {
		return "", admin.ErrInvalidToken
	}

	err := s.opts.Validator.ValidateToken(r.Context(), token)
	switch {
	case err == nil:
		return "jwt", nil
	case errors.Is(err, backend.ErrUnauthorized):
		return "", admin.ErrInvalidToken
	}
	logger.LogWarn("Token validation unavailable: %v", err)
	return "", errBackendUnavailable
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.opts.Dashboard.Activities().Record(ctx, "logout", nil)
	s.opts.Admin.Logout(ctx)
	middleware.WriteAPISuccess(w, r, map[string]bool{"loggedOut": true})
}

func (s *Server) handleAdminSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := s.opts.Admin.Check(ctx)
	s.opts.Dashboard.Activities().Record(ctx, "dashboard_access", nil)
	middleware.WriteAPISuccess(w, r, viewOf(st))
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, err := s.opts.Admin.Extend(ctx)
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	s.opts.Dashboard.Activities().Record(ctx, "session_extended", nil)
	middleware.WriteAPISuccess(w, r, viewOf(st))
}

func (s *Server) handleAdminGallery(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAPISuccess(w, r, s.opts.Dashboard.Gallery(r.Context()))
}

func (s *Server) handleAdminRefresh(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAPISuccess(w, r, s.opts.Dashboard.RefreshGallery(r.Context()))
}

type uploadResponse struct {
	admin.UploadReport
	Summary string `json:"summary"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadRequest)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_upload", "Could not read uploaded files", err.Error())
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.LogWarn("Failed to remove multipart temp files: %v", err)
		}
	}()

	var headers []*multipart.FileHeader
	for _, field := range []string{"image", "images"} {
		headers = append(headers, r.MultipartForm.File[field]...)
	}
	if len(headers) == 0 {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "no_files", "Please select images to upload", "")
		return
	}
	if len(headers) > maxUploadFiles {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "too_many_files", "Too many files in one upload", "")
		return
	}

	files := make([]admin.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readUpload(fh)
		if err != nil {
			logger.LogWarn("Failed to read uploaded file %s: %v", fh.Filename, err)
			middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_upload", "Could not read uploaded files", fh.Filename)
			return
		}
		files = append(files, f)
	}

	report, err := s.opts.Dashboard.Upload(r.Context(), files)
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	resp := uploadResponse{UploadReport: report, Summary: report.Summary()}
	if len(report.Remote)+len(report.Local) == 0 {
		middleware.WriteAPIStatus(w, r, http.StatusUnprocessableEntity, resp)
		return
	}
	middleware.WriteAPIStatus(w, r, http.StatusCreated, resp)
}

// readUpload reads at most one byte past the size limit so oversized files
// are still rejected by validation with their own message.
func readUpload(fh *multipart.FileHeader) (admin.File, error) {
	src, err := fh.Open()
	if err != nil {
		return admin.File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, admin.MaxUploadSize+1))
	if err != nil {
		return admin.File{}, err
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return admin.File{Name: fh.Filename, ContentType: ct, Data: data}, nil
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.Dashboard.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, res)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAPISuccess(w, r, s.opts.Dashboard.Analytics(r.Context()))
}

func (s *Server) handleVisitors(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAPISuccess(w, r, map[string]interface{}{"entries": s.opts.Dashboard.VisitorLog(r.Context())})
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAPISuccess(w, r, map[string]interface{}{"entries": s.opts.Dashboard.ActivityLog(r.Context())})
}

// writeAdminError maps dashboard errors to responses. A session the backend
// rejected is ended locally too.
func (s *Server) writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, admin.ErrSessionExpired):
		s.opts.Admin.Logout(r.Context())
		middleware.WriteAPIError(w, r, http.StatusUnauthorized, "session_expired", "Your session has expired. Please login again.", "")
	case errors.Is(err, admin.ErrNotAuthenticated):
		middleware.WriteAPIError(w, r, http.StatusUnauthorized, "unauthorized", "Please login first", "")
	case errors.Is(err, admin.ErrImageNotFound):
		middleware.WriteAPIError(w, r, http.StatusNotFound, "image_not_found", "Image not found", "")
	default:
		logger.LogError("Admin request %s %s failed: %v", r.Method, r.URL.Path, err)
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "internal_error", "Something went wrong", "")
	}
}
