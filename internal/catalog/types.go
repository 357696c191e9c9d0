package catalog

import "fmt"

// MaxQuantity is the system-wide ceiling for any single cart line.
const MaxQuantity = 50

type Category string

const (
	CategoryCakes    Category = "cakes"
	CategoryCookies  Category = "cookies"
	CategoryCupcakes Category = "cupcakes"

	// CategoryAll is a filter value, never an item category.
	CategoryAll Category = "all"
)

var categoryNames = map[Category]string{
	CategoryCakes:    "Cakes 🎂",
	CategoryCupcakes: "Cupcakes 🧁",
	CategoryCookies:  "Cookies 🍪",
}

// Valid reports whether c is one of the item categories.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// DisplayName is the label the chat assistant and menu headers use.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// MenuItem is one purchasable catalog entry. Prices are whole rupees.
type MenuItem struct {
	ID           int      `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Category     Category `json:"category" yaml:"category"`
	Price        int64    `json:"price" yaml:"price"`
	MinOrder     int      `json:"minOrder" yaml:"minOrder"`
	MaxOrder     int      `json:"maxOrder" yaml:"maxOrder"`
	PriceUnit    string   `json:"priceUnit,omitempty" yaml:"priceUnit,omitempty"`
	MinOrderText string   `json:"minOrderText,omitempty" yaml:"minOrderText,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// DisplayPrice renders the price with its unit suffix, e.g. "₹40/piece".
func (m MenuItem) DisplayPrice() string {
	return fmt.Sprintf("₹%d%s", m.Price, m.PriceUnit)
}

// catalogFile is the on-disk shape of a catalog.
type catalogFile struct {
	Items []MenuItem `json:"items" yaml:"items"`
}
