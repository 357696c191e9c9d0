package testing

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"warmdelights/internal/admin"
	"warmdelights/internal/cart"
	"warmdelights/internal/catalog"
	"warmdelights/internal/chatbot"
	"warmdelights/internal/gallery"
	"warmdelights/internal/logger"
	"warmdelights/internal/storefront"
)

var (
	// Test configuration flags
	pushWait = flag.Duration("push-wait", 3*time.Second, "How long to wait for background analytics pushes")
	verbose  = flag.Bool("suite-verbose", false, "Log application output during tests")
)

func TestMain(m *testing.M) {
	flag.Parse()

	if *verbose {
		logger.LogInfo("Starting tests in verbose mode")
	}

	fmt.Println("🧁 Starting Warm Delights Test Suite")
	fmt.Println("====================================")

	exitCode := m.Run()

	fmt.Println("\n🏁 Test Suite Complete")
	fmt.Println("======================")

	os.Exit(exitCode)
}

// TestSystemIntegration runs comprehensive system tests
func TestSystemIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	t.Run("ShoppingFlow", testShoppingFlow)
	t.Run("GalleryFallbackFlow", testGalleryFallbackFlow)
	t.Run("AdminSessionFlow", testAdminSessionFlow)
	t.Run("ErrorRecovery", testErrorRecovery)
}

func testShoppingFlow(t *testing.T) {
	suite := NewTestSuite(t)
	v := suite.NewVisitor(t)

	t.Log("Step 1: Opening a visitor session")
	v.StartSession()
	resp, _ := v.Do(http.MethodPost, "/api/visit", map[string]string{"page": "/", "referrer": "instagram"})
	suite.AssertStatusCode(t, resp, http.StatusAccepted)
	t.Logf("✓ Session started with CSRF token")

	t.Log("Step 2: Browsing the menu")
	resp, env := v.Do(http.MethodGet, "/api/menu?category=cupcakes", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var menu struct {
		Items []catalog.MenuItem `json:"items"`
	}
	env.Decode(t, &menu)
	if len(menu.Items) != 3 {
		t.Fatalf("Expected 3 cupcake items, got %d", len(menu.Items))
	}
	t.Logf("✓ Menu returned %d cupcakes", len(menu.Items))

	t.Log("Step 3: Filling the cart")
	resp, env = v.Do(http.MethodPost, "/api/cart/items", map[string]int{"itemId": 9, "quantity": 2})
	suite.AssertStatusCode(t, resp, http.StatusUnprocessableEntity)
	var rejected storefront.CartUpdate
	env.Decode(t, &rejected)
	if rejected.Changed || rejected.Notice.Level != cart.LevelWarning {
		t.Errorf("Below-minimum add should be a warning without change, got %+v", rejected.Result)
	}

	resp, _ = v.Do(http.MethodPost, "/api/cart/items", map[string]int{"itemId": 9, "quantity": 4})
	suite.AssertStatusCode(t, resp, http.StatusOK)
	resp, _ = v.Do(http.MethodPost, "/api/cart/items", map[string]int{"itemId": 2, "quantity": 1})
	suite.AssertStatusCode(t, resp, http.StatusOK)
	resp, env = v.Do(http.MethodPatch, "/api/cart/items/9", map[string]int{"delta": 1})
	suite.AssertStatusCode(t, resp, http.StatusOK)

	var upd storefront.CartUpdate
	env.Decode(t, &upd)
	if upd.Cart.Total != 5*40+500 {
		t.Errorf("Expected cart total 700, got %d", upd.Cart.Total)
	}
	if upd.Cart.Count != 6 {
		t.Errorf("Expected 6 items in cart, got %d", upd.Cart.Count)
	}
	t.Logf("✓ Cart holds %d items totalling ₹%d", upd.Cart.Count, upd.Cart.Total)

	t.Log("Step 4: Checking out on WhatsApp")
	resp, env = v.Do(http.MethodPost, "/api/cart/checkout", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var order cart.Order
	env.Decode(t, &order)
	if !strings.HasPrefix(order.URL, "https://wa.me/"+suite.Config.WhatsAppNumber+"?text=") {
		t.Errorf("Unexpected checkout URL %s", order.URL)
	}
	if !strings.Contains(order.Message, "Chocolate Cupcakes") || !strings.Contains(order.Message, "700") {
		t.Errorf("Order message is missing lines or total: %s", order.Message)
	}
	t.Logf("✓ WhatsApp link generated")

	t.Log("Step 5: Checking analytics reached the backend")
	ok := suite.WaitForCondition(func() bool {
		return suite.Backend.TrackedCount("whatsapp_order") == 1 && suite.Backend.TrackedCount("cart_add") == 2
	}, *pushWait)
	if !ok {
		suite.Backend.Snapshot(func(m *MockBackend) { t.Errorf("Backend saw events %v", m.TrackedEvents) })
	}

	resp, env = v.Do(http.MethodGet, "/api/cart", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var view storefront.CartView
	env.Decode(t, &view)
	if view.Count != 6 {
		t.Errorf("Cart should survive checkout, has %d items", view.Count)
	}
	t.Logf("✓ Shopping flow completed")
}

func testGalleryFallbackFlow(t *testing.T) {
	suite := NewTestSuite(t)
	v := suite.NewVisitor(t)
	v.StartSession()

	t.Log("Step 1: Loading the gallery from the backend")
	resp, env := v.Do(http.MethodGet, "/api/gallery", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var g storefront.GalleryView
	env.Decode(t, &g)
	if g.Source != gallery.SourceGlobalStorage || len(g.Images) != 2 {
		t.Fatalf("Expected 2 images from global storage, got %d from %s", len(g.Images), g.Source)
	}

	resp, env = v.Do(http.MethodGet, "/api/gallery", nil)
	env.Decode(t, &g)
	if g.Source != gallery.SourceSessionCache {
		t.Errorf("Second load should come from the session cache, got %s", g.Source)
	}
	t.Logf("✓ Gallery served from backend then cache")

	t.Log("Step 2: Backend storage goes down; operator uploads locally")
	suite.Backend.Configure(func(m *MockBackend) {
		m.ShouldFailImages = true
		m.ShouldFailUpload = true
	})
	op := suite.NewVisitor(t)
	resp, _ = op.Login(suite.Config.AdminToken)
	suite.AssertStatusCode(t, resp, http.StatusOK)

	resp, env = op.Upload(GeneratePNG("birthday.png", 128))
	suite.AssertStatusCode(t, resp, http.StatusCreated)
	var report admin.UploadReport
	env.Decode(t, &report)
	if len(report.Local) != 1 || len(report.Remote) != 0 {
		t.Fatalf("Expected one local upload, got %+v", report)
	}
	if !report.Local[0].IsDataURL() {
		t.Errorf("Local upload should be stored as a data URL")
	}
	t.Logf("✓ Upload fell back to the local mirror")

	t.Log("Step 3: Visitor sees the local mirror")
	resp, env = v.Do(http.MethodGet, "/api/gallery", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	env.Decode(t, &g)
	if g.Source != gallery.SourceLocalStorage || !g.LocalOnly || len(g.Images) != 1 {
		t.Fatalf("Expected the mirrored image, got %d from %s", len(g.Images), g.Source)
	}
	if g.Message == "" {
		t.Error("Local-only gallery should carry a notice")
	}
	t.Logf("✓ Upload invalidated the visitor cache")

	t.Log("Step 4: Backend recovers")
	suite.Backend.Configure(func(m *MockBackend) {
		m.ShouldFailImages = false
		m.ShouldFailUpload = false
	})
	resp, env = v.Do(http.MethodPost, "/api/gallery/refresh", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	env.Decode(t, &g)
	if g.Source != gallery.SourceGlobalStorage || len(g.Images) != 2 {
		t.Errorf("Refresh should reach the backend again, got %d from %s", len(g.Images), g.Source)
	}

	resp, _ = v.Do(http.MethodPost, "/api/gallery/"+g.Images[0].ID+"/viewed", nil)
	suite.AssertStatusCode(t, resp, http.StatusAccepted)
	viewed := suite.WaitForCondition(func() bool {
		var n int
		suite.Backend.Snapshot(func(m *MockBackend) { n = m.Views[g.Images[0].Filename] })
		return n == 1
	}, *pushWait)
	if !viewed {
		t.Error("Image view was not reported to the backend")
	}
	t.Logf("✓ Gallery fallback flow completed")
}

func testAdminSessionFlow(t *testing.T) {
	suite := NewTestSuite(t)
	op := suite.NewVisitor(t)

	t.Log("Step 1: Rejecting bad tokens")
	resp, env := op.Login("wrong-token")
	suite.AssertStatusCode(t, resp, http.StatusUnauthorized)
	if env.Code != "invalid_token" {
		t.Errorf("Expected invalid_token, got %s", env.Code)
	}
	resp, _ = op.Login("eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJub2JvZHkifQ.c2ln")
	suite.AssertStatusCode(t, resp, http.StatusUnauthorized)
	t.Logf("✓ Bad tokens rejected")

	t.Log("Step 2: Logging in")
	resp, _ = op.Login(suite.Config.AdminToken)
	suite.AssertStatusCode(t, resp, http.StatusOK)

	resp, env = op.Do(http.MethodGet, "/admin/api/session", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var st struct {
		admin.Status
		RemainingText string `json:"remainingText"`
	}
	env.Decode(t, &st)
	if !st.Authenticated || st.RenewalDue {
		t.Errorf("Fresh session should be active without renewal prompt: %+v", st.Status)
	}
	if st.Remaining <= admin.SessionLimit-time.Minute {
		t.Errorf("Fresh session should have close to the full limit, has %v", st.Remaining)
	}
	t.Logf("✓ Session active: %s", st.RemainingText)

	resp, _ = op.Do(http.MethodPost, "/admin/api/session/extend", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)

	t.Log("Step 3: Reading analytics and logs")
	shopper := suite.NewVisitor(t)
	shopper.StartSession()
	shopper.Do(http.MethodPost, "/api/visit", map[string]string{"page": "/menu"})
	suite.WaitForCondition(func() bool { return suite.Backend.TrackedCount("page_visit") == 1 }, *pushWait)

	resp, env = op.Do(http.MethodGet, "/admin/api/analytics", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var rep admin.AnalyticsReport
	env.Decode(t, &rep)
	if rep.Source != gallery.SourceGlobalStorage {
		t.Errorf("Analytics should come from the backend, got %s", rep.Source)
	}
	if rep.Stats.ImageUploads != 2 {
		t.Errorf("Expected 2 uploads in backend stats, got %d", rep.Stats.ImageUploads)
	}

	suite.Backend.Configure(func(m *MockBackend) { m.ShouldFailAnalytics = true })
	resp, env = op.Do(http.MethodGet, "/admin/api/analytics", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	env.Decode(t, &rep)
	if rep.Source != gallery.SourceLocalStorage || rep.Stats.TotalVisitors != 1 {
		t.Errorf("Expected local analytics with one visitor, got %+v from %s", rep.Stats, rep.Source)
	}

	resp, env = op.Do(http.MethodGet, "/admin/api/visitors", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var visitors struct {
		Entries []admin.LogEntry `json:"entries"`
	}
	env.Decode(t, &visitors)
	if len(visitors.Entries) == 0 {
		t.Error("Visitor log should list the page visit")
	}

	resp, env = op.Do(http.MethodGet, "/admin/api/activities", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var activities struct {
		Entries []admin.LogEntry `json:"entries"`
	}
	env.Decode(t, &activities)
	if len(activities.Entries) < 2 {
		t.Errorf("Expected login and extension activities, got %d entries", len(activities.Entries))
	}
	t.Logf("✓ Dashboard data available")

	t.Log("Step 4: Logging out")
	resp, _ = op.Do(http.MethodPost, "/admin/api/logout", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	resp, env = op.Do(http.MethodGet, "/admin/api/session", nil)
	suite.AssertStatusCode(t, resp, http.StatusUnauthorized)
	if env.Code != "unauthorized" {
		t.Errorf("Expected unauthorized after logout, got %s", env.Code)
	}
	t.Logf("✓ Admin session flow completed")
}

func testErrorRecovery(t *testing.T) {
	suite := NewTestSuite(t)
	v := suite.NewVisitor(t)
	v.StartSession()

	t.Log("Step 1: Contact form survives a mailer outage")
	suite.Backend.Configure(func(m *MockBackend) { m.ShouldFailContact = true })
	resp, env := v.Do(http.MethodPost, "/api/contact", GenerateContactMessage(1))
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var receipt storefront.ContactReceipt
	env.Decode(t, &receipt)
	if receipt.Forwarded || receipt.Message == "" {
		t.Errorf("Failed forward should still confirm locally: %+v", receipt)
	}

	suite.Backend.Configure(func(m *MockBackend) { m.ShouldFailContact = false })
	resp, env = v.Do(http.MethodPost, "/api/contact", GenerateContactMessage(2))
	suite.AssertStatusCode(t, resp, http.StatusOK)
	env.Decode(t, &receipt)
	if !receipt.Forwarded {
		t.Error("Contact should be forwarded once the backend accepts it")
	}
	t.Logf("✓ Contact form always confirms")

	t.Log("Step 2: Custom orders are validated")
	resp, env = v.Do(http.MethodPost, "/api/custom-order", GenerateCustomOrder("missing-phone"))
	suite.AssertStatusCode(t, resp, http.StatusBadRequest)
	if env.Code != "invalid_custom_order" {
		t.Errorf("Expected invalid_custom_order, got %s", env.Code)
	}
	resp, env = v.Do(http.MethodPost, "/api/custom-order", GenerateCustomOrder())
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var custom storefront.CustomOrderReceipt
	env.Decode(t, &custom)
	if !strings.Contains(custom.URL, "wa.me") {
		t.Errorf("Custom order should link to WhatsApp, got %s", custom.URL)
	}

	t.Log("Step 3: Chatbot answers")
	resp, env = v.Do(http.MethodPost, "/api/chat", map[string]string{"message": "Do you make cupcakes?"})
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var reply chatbot.Response
	env.Decode(t, &reply)
	if reply.Category != catalog.CategoryCupcakes {
		t.Errorf("Expected cupcake answer, got category %q", reply.Category)
	}

	t.Log("Step 4: Uploads reject non-images; deletes reach the backend")
	op := suite.NewVisitor(t)
	resp, _ = op.Login(suite.Config.AdminToken)
	suite.AssertStatusCode(t, resp, http.StatusOK)

	resp, env = op.Upload(GenerateTextFile("notes.txt"))
	suite.AssertStatusCode(t, resp, http.StatusUnprocessableEntity)
	var report admin.UploadReport
	env.Decode(t, &report)
	if len(report.Rejected) != 1 {
		t.Errorf("Expected the text file to be rejected, got %+v", report)
	}

	resp, env = op.Do(http.MethodDelete, "/admin/api/gallery/img-1", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)
	var del admin.DeleteResult
	env.Decode(t, &del)
	if del.Source != gallery.SourceGlobalStorage || suite.Backend.ImageCount() != 1 {
		t.Errorf("Delete should remove the backend image, got %+v with %d left", del, suite.Backend.ImageCount())
	}

	t.Log("Step 5: Backend revokes the token mid-session")
	suite.Backend.Configure(func(m *MockBackend) { m.ShouldRejectToken = true })
	resp, env = op.Upload(GenerateJPEG("late.jpg"))
	suite.AssertStatusCode(t, resp, http.StatusUnauthorized)
	if env.Code != "session_expired" {
		t.Errorf("Expected session_expired, got %s", env.Code)
	}
	resp, _ = op.Do(http.MethodGet, "/admin/api/session", nil)
	suite.AssertStatusCode(t, resp, http.StatusUnauthorized)
	t.Logf("✓ Error recovery completed")
}
