package admin

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"warmdelights/internal/analytics"
	"warmdelights/internal/backend"
	"warmdelights/internal/gallery"
	"warmdelights/internal/logger"
	"warmdelights/internal/storage"
)

const (
	MaxUploadSize   = 10 << 20
	VisitorLogSize  = 30
	ActivityLogSize = 30
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var ErrImageNotFound = errors.New("admin: image not found")

// Backend is the subset of the backend client the dashboard uses.
type Backend interface {
	UploadImage(ctx context.Context, token, filename, contentType string, r io.Reader) (gallery.Image, error)
	DeleteImage(ctx context.Context, token, id string) error
	Analytics(ctx context.Context, token string) (analytics.Stats, error)
}

// Invalidator drops storefront gallery caches after the gallery changes.
type Invalidator interface {
	InvalidateGalleries(ctx context.Context)
}

// File is one upload candidate, fully buffered.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f File) Size() int64 { return int64(len(f.Data)) }

type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type UploadReport struct {
	Remote   []gallery.Image `json:"remote"`
	Local    []gallery.Image `json:"local"`
	Rejected []Rejection     `json:"rejected"`
}

// Summary matches the dashboard status banner.
func (r UploadReport) Summary() string {
	total := len(r.Remote) + len(r.Local)
	switch {
	case total == 0:
		return "No images uploaded"
	case len(r.Local) == 0:
		return fmt.Sprintf("Successfully uploaded %d image(s) to global storage!", len(r.Remote))
	case len(r.Remote) == 0:
		return fmt.Sprintf("Saved %d image(s) locally (global storage unavailable)", len(r.Local))
	}
	return fmt.Sprintf("Uploaded %d to global storage, %d locally", len(r.Remote), len(r.Local))
}

type DeleteResult struct {
	ID     string         `json:"id"`
	Source gallery.Source `json:"source"`
}

type AnalyticsReport struct {
	Stats  analytics.Stats `json:"stats"`
	Source gallery.Source  `json:"source"`
}

type LogEntry struct {
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Dashboard is the operator controller. Every method assumes the caller has
// already authorized the request against the Session.
type Dashboard struct {
	session      *Session
	backend      Backend
	mirror       *gallery.LocalMirror
	loader       *gallery.Loader
	visitorLog   *analytics.Log
	activities   *Activities
	invalidator  Invalidator
	defaultToken string
	now          func() time.Time
	loc          *time.Location
}

type Options struct {
	Session      *Session
	Backend      Backend
	Remote       gallery.Remote
	Mirror       *gallery.LocalMirror
	Volatile     storage.Store
	Persistent   storage.Store
	Events       *analytics.Log
	Pusher       analytics.Pusher
	Invalidator  Invalidator
	DefaultToken string
	GalleryTTL   time.Duration
	Now          func() time.Time
	Location     *time.Location
}

func NewDashboard(o Options) *Dashboard {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	d := &Dashboard{
		session:      o.Session,
		backend:      o.Backend,
		mirror:       o.Mirror,
		visitorLog:   o.Events,
		invalidator:  o.Invalidator,
		defaultToken: o.DefaultToken,
		now:          o.Now,
		loc:          o.Location,
	}
	d.activities = NewActivities(o.Volatile, o.Persistent, o.Pusher, d.token, o.Now)
	cache := gallery.NewAdminCache(o.Volatile, o.GalleryTTL, o.Now)
	d.loader = gallery.NewLoader(cache, o.Remote, o.Mirror, nil)
	return d
}

func (d *Dashboard) Activities() *Activities { return d.activities }

// token prefers the session token and falls back to the configured one.
func (d *Dashboard) token() string {
	if t := d.session.Token(context.Background()); t != "" {
		return t
	}
	return d.defaultToken
}

// ValidateFile applies the upload rules: image types only, at most 10 MB.
func ValidateFile(name, contentType string, size int64) error {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !allowedTypes[ct] {
		return fmt.Errorf("%s: Invalid file type", name)
	}
	if size > MaxUploadSize {
		return fmt.Errorf("%s: File too large (max 10MB)", name)
	}
	if size == 0 {
		return fmt.Errorf("%s: File is empty", name)
	}
	return nil
}

// Upload sends each valid file to the backend, keeping a local copy of any
// file the backend could not take. A 401 aborts the batch.
func (d *Dashboard) Upload(ctx context.Context, files []File) (UploadReport, error) {
	var report UploadReport
	var valid []File
	for _, f := range files {
		if err := ValidateFile(f.Name, f.ContentType, f.Size()); err != nil {
			report.Rejected = append(report.Rejected, Rejection{Name: f.Name, Reason: err.Error()})
			continue
		}
		valid = append(valid, f)
	}
	if len(valid) == 0 {
		return report, nil
	}

	d.activities.Record(ctx, "upload_started", map[string]interface{}{"fileCount": len(valid)})
	defer func() {
		if len(report.Remote)+len(report.Local) > 0 {
			d.invalidateAll(ctx)
		}
	}()

	token := d.token()
	for _, f := range valid {
		img, err := d.backend.UploadImage(ctx, token, f.Name, f.ContentType, bytes.NewReader(f.Data))
		if err == nil {
			report.Remote = append(report.Remote, img)
			continue
		}
		if errors.Is(err, backend.ErrUnauthorized) {
			d.activities.Record(ctx, "upload_failed", map[string]interface{}{"reason": "unauthorized"})
			return report, ErrSessionExpired
		}

		logger.LogWarn("Global storage upload failed for %s, saving locally: %v", f.Name, err)
		local := gallery.Image{
			ID:         "local-" + uuid.NewString(),
			Filename:   filepath.Base(f.Name),
			Name:       filepath.Base(f.Name),
			URL:        "data:" + f.ContentType + ";base64," + base64.StdEncoding.EncodeToString(f.Data),
			UploadedAt: d.now().UTC(),
			Size:       f.Size(),
			Source:     gallery.SourceLocalStorage,
		}
		if err := d.mirror.Add(ctx, local); err != nil {
			logger.LogError("Local save failed for %s: %v", f.Name, err)
			report.Rejected = append(report.Rejected, Rejection{Name: f.Name, Reason: "upload failed"})
			continue
		}
		report.Local = append(report.Local, local)
	}

	typ := "upload_completed"
	if len(report.Remote)+len(report.Local) == 0 {
		typ = "upload_failed"
	}
	d.activities.Record(ctx, typ, map[string]interface{}{
		"globalStorageUploads": len(report.Remote),
		"localUploads":         len(report.Local),
	})
	return report, nil
}

// Delete removes an image from the backend, or from the local mirror when
// the backend cannot.
func (d *Dashboard) Delete(ctx context.Context, id string) (DeleteResult, error) {
	err := d.backend.DeleteImage(ctx, d.token(), id)
	switch {
	case err == nil:
		d.invalidateAll(ctx)
		d.activities.Record(ctx, "image_deleted_global", map[string]interface{}{"imageId": id})
		return DeleteResult{ID: id, Source: gallery.SourceGlobalStorage}, nil
	case errors.Is(err, backend.ErrUnauthorized):
		return DeleteResult{}, ErrSessionExpired
	}
	logger.LogInfo("Global storage delete failed for %s, trying local mirror: %v", id, err)

	removed, ok, err := d.mirror.Remove(ctx, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("removing %s from local mirror: %w", id, err)
	}
	if !ok {
		return DeleteResult{}, ErrImageNotFound
	}
	d.invalidateAll(ctx)
	d.activities.Record(ctx, "image_deleted_local", map[string]interface{}{"imageId": id, "imageName": removed.Name})
	return DeleteResult{ID: id, Source: gallery.SourceLocalStorage}, nil
}

// Analytics returns backend counters, or local aggregates if the backend
// cannot serve them.
func (d *Dashboard) Analytics(ctx context.Context) AnalyticsReport {
	stats, err := d.backend.Analytics(ctx, d.token())
	if err == nil {
		d.activities.Record(ctx, "analytics_viewed", map[string]interface{}{"source": string(gallery.SourceGlobalStorage)})
		return AnalyticsReport{Stats: stats, Source: gallery.SourceGlobalStorage}
	}
	logger.LogInfo("Global storage analytics not available, using local events: %v", err)

	local := analytics.ComputeLocal(d.events(ctx), d.mirror.Count(ctx), d.now(), d.loc)
	d.activities.Record(ctx, "analytics_viewed", map[string]interface{}{"source": string(gallery.SourceLocalStorage)})
	return AnalyticsReport{Stats: local, Source: gallery.SourceLocalStorage}
}

func (d *Dashboard) Gallery(ctx context.Context) gallery.Result {
	res := d.loader.Load(ctx)
	d.activities.Record(ctx, "admin_gallery_viewed", map[string]interface{}{
		"imageCount": len(res.Images),
		"source":     string(res.Source),
	})
	return res
}

func (d *Dashboard) RefreshGallery(ctx context.Context) gallery.Result {
	res := d.loader.Refresh(ctx)
	d.activities.Record(ctx, "gallery_refreshed", map[string]interface{}{"imageCount": len(res.Images)})
	return res
}

// VisitorLog is the most recent visitor events, newest first.
func (d *Dashboard) VisitorLog(ctx context.Context) []LogEntry {
	recent := analytics.Recent(d.events(ctx), VisitorLogSize)
	entries := make([]LogEntry, 0, len(recent))
	for _, ev := range recent {
		entries = append(entries, LogEntry{Description: analytics.Describe(ev), Timestamp: ev.Timestamp})
	}
	d.activities.Record(ctx, "visitor_log_viewed", nil)
	return entries
}

// ActivityLog is the most recent operator actions, newest first.
func (d *Dashboard) ActivityLog(ctx context.Context) []LogEntry {
	recent := analytics.Recent(d.activities.Events(ctx), ActivityLogSize)
	entries := make([]LogEntry, 0, len(recent))
	for _, ev := range recent {
		entries = append(entries, LogEntry{Description: analytics.DescribeActivity(string(ev.Type)), Timestamp: ev.Timestamp})
	}
	return entries
}

func (d *Dashboard) events(ctx context.Context) []analytics.Event {
	if d.visitorLog == nil {
		return nil
	}
	return d.visitorLog.All(ctx)
}

func (d *Dashboard) invalidateAll(ctx context.Context) {
	d.loader.Invalidate(ctx)
	if d.invalidator != nil {
		d.invalidator.InvalidateGalleries(ctx)
	}
}

var _ Backend = (*backend.Client)(nil)
