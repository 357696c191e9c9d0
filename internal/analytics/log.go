package analytics

import (
	"context"
	"sync"
	"time"

	"warmdelights/internal/storage"
)

// Log caps used by the storefront and the admin dashboard.
const (
	SessionEventCap    = 100
	PersistentEventCap = 500
	SessionActivityCap = 50
	ActivityCap        = 100
)

// Log is a capped append-only event list kept under one storage key. The
// oldest entries are dropped first on overflow. Appends through one Log are
// serialized; two Logs over the same key are last-write-wins.
type Log struct {
	mu    sync.Mutex
	store storage.Store
	key   string
	cap   int
}

func NewLog(store storage.Store, key string, cap int) *Log {
	return &Log{store: store, key: key, cap: cap}
}

func (l *Log) Cap() int { return l.cap }

// Append adds events and trims to the cap.
func (l *Log) Append(ctx context.Context, events ...Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var all []Event
	storage.ReadJSON(ctx, l.store, l.key, &all)
	all = append(all, events...)
	if over := len(all) - l.cap; over > 0 {
		all = append([]Event(nil), all[over:]...)
	}
	return storage.WriteJSON(ctx, l.store, l.key, all)
}

// All returns every stored event, oldest first. Unreadable data yields nil.
func (l *Log) All(ctx context.Context) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var all []Event
	storage.ReadJSON(ctx, l.store, l.key, &all)
	return all
}

// Prune drops events recorded before cutoff and reports how many went.
func (l *Log) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var all []Event
	if !storage.ReadJSON(ctx, l.store, l.key, &all) {
		return 0, nil
	}
	kept := all[:0]
	for _, ev := range all {
		if !ev.Timestamp.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	removed := len(all) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, storage.WriteJSON(ctx, l.store, l.key, kept)
}
