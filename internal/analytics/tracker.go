package analytics

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"warmdelights/internal/logger"
)

const pushTimeout = 5 * time.Second

// Pusher forwards a single event to the backend collaborator.
type Pusher interface {
	Track(ctx context.Context, token, eventType string, data map[string]interface{}) error
}

// Tracker records events into a per-session log and the shared persistent
// log, and mirrors them to the backend without waiting for it.
type Tracker struct {
	session    *Log
	persistent *Log
	pusher     Pusher
	token      func() string
	prefix     string
	now        func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type TrackerOption func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithToken attaches a bearer token to backend pushes. Pushes are skipped
// while the token is empty.
func WithToken(token func() string) TrackerOption {
	return func(t *Tracker) { t.token = token }
}

// WithTypePrefix prefixes the event type sent to the backend, e.g. "admin_".
func WithTypePrefix(prefix string) TrackerOption {
	return func(t *Tracker) { t.prefix = prefix }
}

func NewTracker(session, persistent *Log, pusher Pusher, opts ...TrackerOption) *Tracker {
	t := &Tracker{session: session, persistent: persistent, pusher: pusher, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends an event to both logs and pushes it to the backend. It
// never fails: storage and network errors are logged and dropped.
func (t *Tracker) Record(ctx context.Context, typ EventType, data map[string]interface{}) Event {
	ev := Event{ID: uuid.NewString(), Type: typ, Data: data, Timestamp: t.now().UTC()}

	for _, l := range []*Log{t.session, t.persistent} {
		if l == nil {
			continue
		}
		if err := l.Append(ctx, ev); err != nil {
			logger.LogWarn("Event %s stored locally failed: %v", typ, err)
		}
	}

	t.push(ctx, ev)
	return ev
}

func (t *Tracker) push(ctx context.Context, ev Event) {
	if t.pusher == nil {
		return
	}
	token := ""
	if t.token != nil {
		token = t.token()
		if token == "" {
			return
		}
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if err := t.pusher.Track(pctx, token, t.prefix+string(ev.Type), ev.Data); err != nil {
			logger.LogInfo("Analytics stored locally - backend offline (%s): %v", ev.Type, err)
		}
	}()
}

// Events returns the union of both logs, persistent entries first, without
// deduplication.
func (t *Tracker) Events(ctx context.Context) []Event {
	var all []Event
	if t.persistent != nil {
		all = append(all, t.persistent.All(ctx)...)
	}
	if t.session != nil {
		all = append(all, t.session.All(ctx)...)
	}
	return all
}

// Wait blocks until in-flight backend pushes finish.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Close stops backend pushes and waits for those in flight. Events recorded
// afterwards are still stored locally.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}

// Truncate clips free text kept in events, e.g. chat messages.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
