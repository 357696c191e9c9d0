package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Len(t, c.Items(), 11)

	vanilla, ok := c.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "Vanilla Cake", vanilla.Name)
	assert.Equal(t, int64(450), vanilla.Price)
	assert.Equal(t, MaxQuantity, vanilla.MaxOrder)

	cupcakes, ok := c.Lookup(9)
	require.True(t, ok)
	assert.Equal(t, 4, cupcakes.MinOrder)
	assert.Equal(t, "₹40/piece", cupcakes.DisplayPrice())

	assert.Len(t, c.ByCategory(CategoryCookies), 4)
	assert.Len(t, c.ByCategory(CategoryAll), 11)
	assert.Len(t, c.ByCategory(""), 11)

	low, high := c.PriceRange()
	assert.Equal(t, int64(35), low)
	assert.Equal(t, int64(550), high)
}

func TestNewRejectsInvalidItems(t *testing.T) {
	cases := map[string]MenuItem{
		"zero id":     {ID: 0, Name: "x", Category: CategoryCakes, Price: 1, MinOrder: 1},
		"no name":     {ID: 1, Category: CategoryCakes, Price: 1, MinOrder: 1},
		"bad cat":     {ID: 1, Name: "x", Category: "bread", Price: 1, MinOrder: 1},
		"free":        {ID: 1, Name: "x", Category: CategoryCakes, MinOrder: 1},
		"min too big": {ID: 1, Name: "x", Category: CategoryCakes, Price: 1, MinOrder: 51},
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New([]MenuItem{item})
			assert.Error(t, err)
		})
	}

	_, err := New([]MenuItem{
		{ID: 1, Name: "a", Category: CategoryCakes, Price: 1, MinOrder: 1},
		{ID: 1, Name: "b", Category: CategoryCakes, Price: 1, MinOrder: 1},
	})
	assert.Error(t, err, "duplicate ids must be rejected")
}

func TestLoadYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "menu.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
items:
  - id: 1
    name: Rum Cake
    category: cakes
    price: 650
    minOrder: 1
`), 0o644))

	c, err := Load(yamlPath)
	require.NoError(t, err)
	item, ok := c.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "Rum Cake", item.Name)
	assert.Equal(t, MaxQuantity, item.MaxOrder)

	jsonPath := filepath.Join(dir, "menu.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"items":[{"id":2,"name":"Brownies","category":"cookies","price":120,"minOrder":2,"priceUnit":"/box"}]}`), 0o644))

	c, err = Load(jsonPath)
	require.NoError(t, err)
	item, ok = c.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, "₹120/box", item.DisplayPrice())

	_, err = Load(filepath.Join(dir, "menu.txt"))
	assert.Error(t, err)
}
