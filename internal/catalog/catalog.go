package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"warmdelights/internal/logger"
)

// Catalog is the static menu. It is never mutated after construction, so it
// is safe to share across visitor sessions without locking.
type Catalog struct {
	items []MenuItem
	byID  map[int]MenuItem
}

// New validates items and builds a catalog preserving their order.
func New(items []MenuItem) (*Catalog, error) {
	c := &Catalog{
		items: make([]MenuItem, 0, len(items)),
		byID:  make(map[int]MenuItem, len(items)),
	}
	for i, item := range items {
		item.MaxOrder = MaxQuantity
		if err := validate(item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if _, dup := c.byID[item.ID]; dup {
			return nil, fmt.Errorf("item %d: duplicate id %d", i, item.ID)
		}
		c.items = append(c.items, item)
		c.byID[item.ID] = item
	}
	return c, nil
}

func validate(item MenuItem) error {
	switch {
	case item.ID <= 0:
		return fmt.Errorf("id must be positive")
	case strings.TrimSpace(item.Name) == "":
		return fmt.Errorf("name is required")
	case !item.Category.Valid():
		return fmt.Errorf("unknown category %q", item.Category)
	case item.Price <= 0:
		return fmt.Errorf("price must be positive")
	case item.MinOrder < 1 || item.MinOrder > MaxQuantity:
		return fmt.Errorf("minOrder must be within [1, %d]", MaxQuantity)
	}
	return nil
}

// Load reads a catalog from a YAML or JSON file, chosen by extension.
func Load(path string) (*Catalog, error) {
	logger.LogInfo("Loading catalog from %s", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &file)
	case ".json":
		err = json.Unmarshal(raw, &file)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	c, err := New(file.Items)
	if err != nil {
		return nil, err
	}
	logger.LogInfo("Loaded catalog: %d items", len(c.items))
	return c, nil
}

// Items returns a copy of all items in catalog order.
func (c *Catalog) Items() []MenuItem {
	out := make([]MenuItem, len(c.items))
	copy(out, c.items)
	return out
}

// Lookup finds an item by ID.
func (c *Catalog) Lookup(id int) (MenuItem, bool) {
	item, ok := c.byID[id]
	return item, ok
}

// ByCategory filters the menu; CategoryAll or "" returns everything.
func (c *Catalog) ByCategory(cat Category) []MenuItem {
	if cat == "" || cat == CategoryAll {
		return c.Items()
	}
	var out []MenuItem
	for _, item := range c.items {
		if item.Category == cat {
			out = append(out, item)
		}
	}
	return out
}

// PriceRange returns the lowest and highest unit price.
func (c *Catalog) PriceRange() (low, high int64) {
	for i, item := range c.items {
		if i == 0 || item.Price < low {
			low = item.Price
		}
		if item.Price > high {
			high = item.Price
		}
	}
	return low, high
}
