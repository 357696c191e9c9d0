package testing

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"warmdelights/internal/analytics"
	"warmdelights/internal/cleanup"
	"warmdelights/internal/storage"
)

// TestDatabaseOperations covers what must survive a restart on SQLite.
func TestDatabaseOperations(t *testing.T) {
	t.Run("AdminSessionSurvivesRestart", testAdminSessionPersistence)
	t.Run("EventsSurviveRestart", testEventPersistence)
	t.Run("LocalMirrorSurvivesRestart", testMirrorPersistence)
	t.Run("ConcurrentEventAppends", testConcurrentAppends)
	t.Run("RetentionPrune", testRetentionPrune)
}

func testAdminSessionPersistence(t *testing.T) {
	suite := NewTestSuite(t)
	op := suite.NewVisitor(t)
	resp, _ := op.Login(suite.Config.AdminToken)
	suite.AssertStatusCode(t, resp, http.StatusOK)

	suite.Reopen(t)

	resp, env := op.Do(http.MethodGet, "/admin/api/session", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var st struct {
		Authenticated bool `json:"authenticated"`
	}
	env.Decode(t, &st)
	if !st.Authenticated {
		t.Error("Admin session should still be active after reopening the database")
	}
	t.Logf("✓ Admin session restored from SQLite")
}

func testEventPersistence(t *testing.T) {
	suite := NewTestSuite(t)
	v := suite.NewVisitor(t)
	v.StartSession()
	resp, _ := v.Do(http.MethodPost, "/api/visit", map[string]string{"page": "/gallery"})
	suite.AssertStatusCode(t, resp, http.StatusAccepted)
	resp, _ = v.Do(http.MethodPost, "/api/cart/items", map[string]int{"itemId": 1, "quantity": 1})
	suite.AssertStatusCode(t, resp, http.StatusOK)

	suite.Reopen(t)

	events := suite.Events.All(context.Background())
	seen := map[analytics.EventType]int{}
	for _, ev := range events {
		seen[ev.Type]++
	}
	if seen[analytics.EventPageVisit] != 1 || seen[analytics.EventCartAdd] != 1 {
		t.Errorf("Expected one visit and one cart add after reopen, got %v", seen)
	}
}

func testMirrorPersistence(t *testing.T) {
	suite := NewTestSuite(t)
	suite.Backend.Configure(func(m *MockBackend) { m.ShouldFailUpload = true })

	op := suite.NewVisitor(t)
	resp, _ := op.Login(suite.Config.AdminToken)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	resp, _ = op.Upload(GeneratePNG("a.png", 32), GeneratePNG("b.png", 32))
	suite.AssertStatusCode(t, resp, http.StatusCreated)

	suite.Reopen(t)

	if n := suite.Mirror.Count(context.Background()); n != 2 {
		t.Errorf("Expected 2 mirrored images after reopen, got %d", n)
	}
}

func testConcurrentAppends(t *testing.T) {
	suite := NewTestSuite(t)
	ctx := context.Background()

	const workers, perWorker = 10, 8
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ev := analytics.Event{
					ID:        fmt.Sprintf("w%d-%d", w, i),
					Type:      analytics.EventImageView,
					Timestamp: time.Now().UTC(),
				}
				if err := suite.Events.Append(ctx, ev); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Append failed: %v", err)
	}

	if n := len(suite.Events.All(ctx)); n != workers*perWorker {
		t.Errorf("Expected %d events, got %d", workers*perWorker, n)
	}

	overflow := make([]analytics.Event, analytics.PersistentEventCap)
	for i := range overflow {
		overflow[i] = analytics.Event{ID: fmt.Sprintf("o%d", i), Type: analytics.EventPageVisit, Timestamp: time.Now().UTC()}
	}
	suite.AssertNoError(t, suite.Events.Append(ctx, overflow...))
	all := suite.Events.All(ctx)
	if len(all) != analytics.PersistentEventCap || all[0].ID != "o0" {
		t.Errorf("Log should keep the newest %d events, has %d starting at %s", analytics.PersistentEventCap, len(all), all[0].ID)
	}
}

func testRetentionPrune(t *testing.T) {
	suite := NewTestSuite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	suite.AssertNoError(t, suite.Events.Append(ctx,
		analytics.Event{ID: "old", Type: analytics.EventPageVisit, Timestamp: now.AddDate(0, 0, -120)},
		analytics.Event{ID: "recent", Type: analytics.EventPageVisit, Timestamp: now.AddDate(0, 0, -3)},
	))

	routine := cleanup.New(cleanup.Task{Name: "event retention", Run: func(ctx context.Context) (int, error) {
		return suite.Events.Prune(ctx, now.AddDate(0, 0, -90))
	}})
	if n := routine.RunOnce(ctx); n != 1 {
		t.Errorf("Expected 1 pruned event, got %d", n)
	}

	all := suite.Events.All(ctx)
	if len(all) != 1 || all[0].ID != "recent" {
		t.Errorf("Only the recent event should remain, got %+v", all)
	}

	raw, ok, err := suite.DB.Get(ctx, storage.KeyEvents)
	suite.AssertNoError(t, err)
	if !ok || raw == "" {
		t.Error("Pruned log should still be stored")
	}
}
