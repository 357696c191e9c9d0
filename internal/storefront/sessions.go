package storefront

import (
	"context"
	"sync"
	"time"

	"warmdelights/internal/analytics"
	"warmdelights/internal/catalog"
	"warmdelights/internal/gallery"
	"warmdelights/internal/logger"
	"warmdelights/internal/storage"
	"warmdelights/internal/whatsapp"
)

// Deps are the collaborators shared by every visitor session.
type Deps struct {
	Menu                *catalog.Catalog
	Link                whatsapp.Link
	ClearCartOnCheckout bool

	BaseURL  string
	Remote   gallery.Remote
	Views    gallery.ViewNotifier
	Contacts ContactSender
	Pusher   analytics.Pusher

	// Mirror is the admin's local image mirror, read as the gallery's
	// offline fallback.
	Mirror *gallery.LocalMirror
	// Events is the persistent event log shared with the dashboard.
	Events *analytics.Log

	// NewStore returns the volatile store of a new session. Defaults to an
	// in-memory store.
	NewStore   func(sessionID string) storage.Store
	GalleryTTL time.Duration
	IdleAfter  time.Duration
	Now        func() time.Time
}

// Sessions is the registry of live visitor sessions.
type Sessions struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Controller
}

func NewSessions(d Deps) *Sessions {
	if d.Menu == nil {
		d.Menu = catalog.Default()
	}
	if d.NewStore == nil {
		d.NewStore = func(string) storage.Store { return storage.NewMemoryStore() }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Sessions{deps: d, sessions: make(map[string]*Controller)}
}

// Open returns the session's controller, creating it on first use.
func (s *Sessions) Open(id string) *Controller {
	if c, ok := s.Get(id); ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.sessions[id]; ok {
		c.touch()
		return c
	}
	c := newController(id, s.deps, s.deps.NewStore(id))
	s.sessions[id] = c
	logger.LogInfo("Visitor session %s opened (%d live)", id, len(s.sessions))
	return c
}

// Get returns a live session and marks it active.
func (s *Sessions) Get(id string) (*Controller, bool) {
	s.mu.RLock()
	c, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		c.touch()
	}
	return c, ok
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep closes sessions idle for longer than IdleAfter and returns how many
// were closed. A zero IdleAfter keeps sessions forever.
func (s *Sessions) Sweep(ctx context.Context) int {
	if s.deps.IdleAfter <= 0 {
		return 0
	}
	cutoff := s.deps.Now().Add(-s.deps.IdleAfter)

	s.mu.Lock()
	var idle []*Controller
	for id, c := range s.sessions {
		if c.idleSince().Before(cutoff) {
			idle = append(idle, c)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, c := range idle {
		c.close(ctx)
	}
	if len(idle) > 0 {
		logger.LogInfo("Closed %d idle visitor sessions", len(idle))
	}
	return len(idle)
}

// InvalidateGalleries drops every session's cached gallery so the next load
// goes to the backend. Used after admin uploads and deletes.
func (s *Sessions) InvalidateGalleries(ctx context.Context) {
	for _, c := range s.snapshot() {
		c.InvalidateGallery(ctx)
	}
}

// CloseAll closes every session, e.g. on shutdown.
func (s *Sessions) CloseAll(ctx context.Context) {
	s.mu.Lock()
	all := make([]*Controller, 0, len(s.sessions))
	for _, c := range s.sessions {
		all = append(all, c)
	}
	s.sessions = make(map[string]*Controller)
	s.mu.Unlock()

	for _, c := range all {
		c.close(ctx)
	}
}

func (s *Sessions) snapshot() []*Controller {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Controller, 0, len(s.sessions))
	for _, c := range s.sessions {
		out = append(out, c)
	}
	return out
}
