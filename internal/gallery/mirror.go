package gallery

import (
	"context"
	"sync"

	"warmdelights/internal/storage"
)

// LocalMirror is the persisted list of images uploaded while the backend was
// unreachable. It is never reconciled with the backend.
type LocalMirror struct {
	mu    sync.Mutex
	store storage.Store
}

func NewLocalMirror(store storage.Store) *LocalMirror {
	return &LocalMirror{store: store}
}

func (m *LocalMirror) List(ctx context.Context) []Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read(ctx)
}

func (m *LocalMirror) read(ctx context.Context) []Image {
	var images []Image
	storage.ReadJSON(ctx, m.store, storage.KeyAdminGalleryImages, &images)
	for i := range images {
		images[i].Source = SourceLocalStorage
	}
	return images
}

func (m *LocalMirror) Add(ctx context.Context, img Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	img.Source = SourceLocalStorage
	images := append(m.read(ctx), img)
	return storage.WriteJSON(ctx, m.store, storage.KeyAdminGalleryImages, images)
}

// Remove deletes the image with the given key and reports what was removed.
func (m *LocalMirror) Remove(ctx context.Context, key string) (Image, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	images := m.read(ctx)
	kept := images[:0]
	var removed Image
	found := false
	for _, img := range images {
		if !found && img.Key() == key {
			removed, found = img, true
			continue
		}
		kept = append(kept, img)
	}
	if !found {
		return Image{}, false, nil
	}
	return removed, true, storage.WriteJSON(ctx, m.store, storage.KeyAdminGalleryImages, kept)
}

func (m *LocalMirror) Count(ctx context.Context) int {
	return len(m.List(ctx))
}
