// Package gallery loads the storefront and dashboard image galleries through
// a fixed fallback chain: session cache, backend, local mirror, empty state.
package gallery

import (
	"context"
	"sync/atomic"

	"warmdelights/internal/analytics"
	"warmdelights/internal/logger"
)

// Remote lists images from the backend collaborator.
type Remote interface {
	ListImages(ctx context.Context) ([]Image, error)
}

// Recorder receives analytics events; *analytics.Tracker satisfies it.
type Recorder interface {
	Record(ctx context.Context, typ analytics.EventType, data map[string]interface{}) analytics.Event
}

// Result is what one load produced and where it came from.
type Result struct {
	Images    []Image `json:"images"`
	Source    Source  `json:"source"`
	LocalOnly bool    `json:"localOnly"`
	Empty     bool    `json:"empty"`
}

// Loader runs the fallback chain. Each load takes a generation number; a
// remote result is cached only if no Refresh or Invalidate started after it.
type Loader struct {
	cache    *Cache
	remote   Remote
	mirror   *LocalMirror
	recorder Recorder
	gen      atomic.Uint64
}

func NewLoader(cache *Cache, remote Remote, mirror *LocalMirror, recorder Recorder) *Loader {
	return &Loader{cache: cache, remote: remote, mirror: mirror, recorder: recorder}
}

// Load never fails; the worst outcome is an empty Result.
func (l *Loader) Load(ctx context.Context) Result {
	res := l.load(ctx, l.gen.Load())
	l.record(ctx, analytics.EventGalleryLoaded, res)
	return res
}

// Refresh drops the cached payload unconditionally and reloads.
func (l *Loader) Refresh(ctx context.Context) Result {
	gen := l.gen.Add(1)
	l.cache.Invalidate(ctx)
	res := l.load(ctx, gen)
	l.record(ctx, analytics.EventGalleryRefreshed, res)
	return res
}

// Invalidate drops the cached payload and supersedes loads in flight.
func (l *Loader) Invalidate(ctx context.Context) {
	l.gen.Add(1)
	l.cache.Invalidate(ctx)
}

func (l *Loader) load(ctx context.Context, gen uint64) Result {
	if p, ok := l.cache.Get(ctx); ok && len(p.Images) > 0 {
		return Result{Images: p.Images, Source: SourceSessionCache}
	}

	if l.remote != nil {
		images, err := l.remote.ListImages(ctx)
		switch {
		case err != nil:
			logger.LogWarn("Gallery backend unavailable, trying local mirror: %v", err)
		case len(images) == 0:
			logger.LogInfo("Gallery backend returned no images, trying local mirror")
		default:
			for i := range images {
				images[i].Source = SourceGlobalStorage
			}
			if l.gen.Load() == gen {
				if _, err := l.cache.Put(ctx, images, SourceGlobalStorage); err != nil {
					logger.LogWarn("Gallery cache write failed: %v", err)
				}
			} else {
				logger.LogInfo("Gallery load superseded, not caching %d images", len(images))
			}
			return Result{Images: images, Source: SourceGlobalStorage}
		}
	}

	if l.mirror != nil {
		if images := l.mirror.List(ctx); len(images) > 0 {
			return Result{Images: images, Source: SourceLocalStorage, LocalOnly: true}
		}
	}

	return Result{Images: []Image{}, Source: SourceEmpty, Empty: true}
}

func (l *Loader) record(ctx context.Context, typ analytics.EventType, res Result) {
	if l.recorder == nil {
		return
	}
	l.recorder.Record(ctx, typ, map[string]interface{}{
		"imageCount": len(res.Images),
		"source":     string(res.Source),
	})
}
