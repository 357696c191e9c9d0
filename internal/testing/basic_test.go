package testing

import (
	"net/http"
	"testing"

	"warmdelights/internal/admin"
	"warmdelights/internal/catalog"
)

func TestBasic(t *testing.T) {
	t.Log("Basic test running")

	// Test that we can create a test suite
	suite := NewTestSuite(t)

	v := suite.NewVisitor(t)
	resp, _ := v.Do(http.MethodGet, "/healthz", nil)
	suite.AssertStatusCode(t, resp, http.StatusOK)

	// Test that we can generate test data
	img := GeneratePNG("cake.png", 64)
	if err := admin.ValidateFile(img.Name, http.DetectContentType(img.Data), int64(len(img.Data))); err != nil {
		t.Errorf("Generated PNG should pass upload validation: %v", err)
	}
	if err := GenerateCustomOrder().Validate(); err != nil {
		t.Errorf("Generated custom order should be valid: %v", err)
	}
	if err := GenerateCustomOrder("missing-name").Validate(); err == nil {
		t.Error("Custom order without a name should be invalid")
	}

	path := suite.WriteFixture(t, "menu.yaml", []byte(testCatalogYAML))
	menu, err := catalog.Load(path)
	suite.AssertNoError(t, err)
	if len(menu.Items()) != 2 {
		t.Errorf("Expected 2 catalog items, got %d", len(menu.Items()))
	}

	t.Logf("✅ Basic test passed - backend at %s", suite.Backend.URL())
}
