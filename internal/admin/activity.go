package admin

import (
	"context"
	"time"

	"warmdelights/internal/analytics"
	"warmdelights/internal/storage"
)

// Activities is the operator audit trail: a short per-session log, a longer
// persistent one, and an admin_<action> push to the backend while signed in.
type Activities struct {
	tracker *analytics.Tracker
}

func NewActivities(volatile, persistent storage.Store, pusher analytics.Pusher, token func() string, now func() time.Time) *Activities {
	var session, durable *analytics.Log
	if volatile != nil {
		session = analytics.NewLog(volatile, storage.KeyAdminSessionActivities, analytics.SessionActivityCap)
	}
	if persistent != nil {
		durable = analytics.NewLog(persistent, storage.KeyAdminActivities, analytics.ActivityCap)
	}
	opts := []analytics.TrackerOption{analytics.WithTypePrefix("admin_"), analytics.WithToken(token)}
	if now != nil {
		opts = append(opts, analytics.WithClock(now))
	}
	return &Activities{tracker: analytics.NewTracker(session, durable, pusher, opts...)}
}

func (a *Activities) Record(ctx context.Context, action string, data map[string]interface{}) {
	a.tracker.Record(ctx, analytics.EventType(action), data)
}

func (a *Activities) Events(ctx context.Context) []analytics.Event {
	return a.tracker.Events(ctx)
}

// Wait blocks until pending backend pushes finish.
func (a *Activities) Wait() {
	a.tracker.Wait()
}
