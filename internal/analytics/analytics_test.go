package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warmdelights/internal/storage"
)

type recordingPusher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (p *recordingPusher) Track(_ context.Context, token, eventType string, _ map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, token+"|"+eventType)
	return p.err
}

func (p *recordingPusher) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func TestLogKeepsMostRecentCapEntries(t *testing.T) {
	ctx := context.Background()
	log := NewLog(storage.NewMemoryStore(), storage.KeyEvents, SessionEventCap)

	for i := 0; i < 130; i++ {
		require.NoError(t, log.Append(ctx, Event{ID: fmt.Sprint(i), Type: EventPageVisit}))
	}

	all := log.All(ctx)
	require.Len(t, all, SessionEventCap)
	assert.Equal(t, "30", all[0].ID, "oldest entries must be dropped first")
	assert.Equal(t, "129", all[len(all)-1].ID)
}

func TestLogTreatsCorruptDataAsEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, storage.KeyEvents, "[{broken"))

	log := NewLog(store, storage.KeyEvents, 5)
	assert.Empty(t, log.All(ctx))

	require.NoError(t, log.Append(ctx, Event{ID: "a"}))
	assert.Len(t, log.All(ctx), 1)
}

func TestTrackerRecordsToBothLogsAndPushes(t *testing.T) {
	ctx := context.Background()
	session := NewLog(storage.NewMemoryStore(), storage.KeyEvents, SessionEventCap)
	persistent := NewLog(storage.NewMemoryStore(), storage.KeyEvents, PersistentEventCap)
	pusher := &recordingPusher{err: errors.New("offline")}

	fixed := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(session, persistent, pusher, WithClock(func() time.Time { return fixed }))

	ev := tr.Record(ctx, EventCartAdd, map[string]interface{}{"itemName": "Vanilla Cake"})
	tr.Wait()

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, fixed, ev.Timestamp)
	assert.Len(t, session.All(ctx), 1)
	assert.Len(t, persistent.All(ctx), 1)
	assert.Len(t, tr.Events(ctx), 2, "logs are not deduplicated")
	assert.Equal(t, []string{"|cart_add"}, pusher.Calls())
}

func TestTrackerSkipsPushWithoutToken(t *testing.T) {
	ctx := context.Background()
	pusher := &recordingPusher{}
	token := ""
	tr := NewTracker(NewLog(storage.NewMemoryStore(), storage.KeyAdminSessionActivities, SessionActivityCap), nil, pusher,
		WithToken(func() string { return token }), WithTypePrefix("admin_"))

	tr.Record(ctx, "logout", nil)
	tr.Wait()
	assert.Empty(t, pusher.Calls())

	token = "abc"
	tr.Record(ctx, "login", nil)
	tr.Wait()
	assert.Equal(t, []string{"abc|admin_login"}, pusher.Calls())
}

func TestTrackerCloseStopsPushes(t *testing.T) {
	ctx := context.Background()
	session := NewLog(storage.NewMemoryStore(), storage.KeyEvents, SessionEventCap)
	pusher := &recordingPusher{}
	tr := NewTracker(session, nil, pusher)

	tr.Record(ctx, EventPageVisit, nil)
	tr.Close()
	assert.Len(t, pusher.Calls(), 1)

	tr.Record(ctx, EventCartAdd, nil)
	tr.Wait()
	assert.Len(t, pusher.Calls(), 1, "no push after close")
	assert.Len(t, session.All(ctx), 2, "events are still stored locally")
}

func TestTrackerCloseRacesRecord(t *testing.T) {
	ctx := context.Background()
	pusher := &recordingPusher{}
	tr := NewTracker(NewLog(storage.NewMemoryStore(), storage.KeyEvents, SessionEventCap), nil, pusher)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				tr.Record(ctx, EventImageView, nil)
			}
		}()
	}
	tr.Close()
	wg.Wait()

	n := len(pusher.Calls())
	tr.Wait()
	assert.Equal(t, n, len(pusher.Calls()))
}

func TestComputeLocal(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, loc)

	events := []Event{
		{Type: EventPageVisit, Timestamp: now.Add(-time.Hour)},
		{Type: EventPageVisit, Timestamp: time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC)}, // 00:30 on the 17th in IST
		{Type: EventPageVisit, Timestamp: now.Add(-30 * time.Hour)},
		{Type: EventCartAdd},
		{Type: EventCartAdd},
		{Type: EventWhatsAppOrder},
		{Type: EventChatMessage},
		{Type: EventContactSubmit},
		{Type: EventImageView},
		{Type: EventImageView},
		{Type: EventGalleryLoaded},
	}

	s := ComputeLocal(events, 3, now, loc)
	assert.Equal(t, Stats{
		TotalVisitors:      3,
		TodayVisitors:      2,
		CartAdditions:      2,
		WhatsAppOrders:     1,
		ChatInteractions:   1,
		ContactSubmissions: 1,
		ImageUploads:       3,
		ImageViews:         2,
	}, s)

	assert.Equal(t, Stats{}, ComputeLocal(nil, 0, now, nil))
}

func TestRecentNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var events []Event
	for i := 0; i < 40; i++ {
		events = append(events, Event{ID: fmt.Sprint(i), Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}

	recent := Recent(events, 30)
	require.Len(t, recent, 30)
	assert.Equal(t, "39", recent[0].ID)
	assert.Equal(t, "10", recent[29].ID)
	assert.Equal(t, "0", events[0].ID, "input must not be reordered")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "🛒 Added Vanilla Cake to cart", Describe(Event{Type: EventCartAdd, Data: map[string]interface{}{"itemName": "Vanilla Cake"}}))
	assert.Equal(t, "💬 Placed WhatsApp order (₹1060)", Describe(Event{Type: EventWhatsAppOrder, Data: map[string]interface{}{"total": 1060}}))
	assert.Equal(t, "📊 Unknown activity", Describe(Event{Type: "mystery"}))
	assert.Equal(t, "⏰ Extended session", DescribeActivity("session_extended"))
	assert.Equal(t, "custom_action", DescribeActivity("custom_action"))
	assert.Equal(t, "héllo", Truncate("  héllo world ", 5))
}

func TestLogPrune(t *testing.T) {
	ctx := context.Background()
	l := NewLog(storage.NewMemoryStore(), "events", 10)
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Append(ctx, Event{ID: fmt.Sprint(i), Type: EventPageVisit, Timestamp: base.AddDate(0, 0, i*10)}))
	}

	n, err := l.Prune(ctx, base.AddDate(0, 0, 15))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	all := l.All(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[0].ID)

	n, err = l.Prune(ctx, base)
	require.NoError(t, err)
	assert.Zero(t, n)
}
