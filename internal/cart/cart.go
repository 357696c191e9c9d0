package cart

import (
	"errors"
	"fmt"
	"strings"

	"warmdelights/internal/catalog"
	"warmdelights/internal/whatsapp"
)

var ErrEmptyCart = errors.New("cart is empty")

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is the transient message shown to the visitor after a cart action.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Result reports the outcome of a mutation. Quantity rule violations are
// reported here, never as Go errors.
type Result struct {
	Changed bool   `json:"changed"`
	Removed bool   `json:"removed,omitempty"`
	Notice  Notice `json:"notice"`
	// ResetQuantity is the value the quantity input should show afterwards.
	ResetQuantity int `json:"resetQuantity,omitempty"`
}

type Line struct {
	Item     catalog.MenuItem `json:"item"`
	Quantity int              `json:"quantity"`
}

func (l Line) Total() int64 {
	return l.Item.Price * int64(l.Quantity)
}

// Cart is the working order of one visitor session. It is not safe for
// concurrent use; the owning controller serializes access.
type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{}
}

func (c *Cart) find(itemID int) int {
	for i := range c.lines {
		if c.lines[i].Item.ID == itemID {
			return i
		}
	}
	return -1
}

// AddItem merges requestedQty of item into the cart.
func (c *Cart) AddItem(item catalog.MenuItem, requestedQty int) Result {
	if requestedQty < item.MinOrder {
		return Result{
			Notice:        Notice{LevelWarning, fmt.Sprintf("Minimum order quantity for %s is %d", item.Name, item.MinOrder)},
			ResetQuantity: item.MinOrder,
		}
	}
	if requestedQty > catalog.MaxQuantity {
		return Result{
			Notice:        Notice{LevelWarning, fmt.Sprintf("Maximum order quantity is %d", catalog.MaxQuantity)},
			ResetQuantity: catalog.MaxQuantity,
		}
	}

	notice := Notice{LevelSuccess, fmt.Sprintf("%d %s added to cart! 🛒", requestedQty, item.Name)}
	if i := c.find(item.ID); i >= 0 {
		merged := c.lines[i].Quantity + requestedQty
		if merged > catalog.MaxQuantity {
			merged = catalog.MaxQuantity
			notice = Notice{LevelWarning, fmt.Sprintf("%s is limited to %d per order; quantity set to %d", item.Name, catalog.MaxQuantity, catalog.MaxQuantity)}
		}
		c.lines[i].Quantity = merged
	} else {
		c.lines = append(c.lines, Line{Item: item, Quantity: requestedQty})
	}

	return Result{Changed: true, Notice: notice, ResetQuantity: item.MinOrder}
}

// UpdateQuantity applies delta to a line. A result of zero or below removes
// the line; a positive result below the item minimum or above the ceiling is
// rejected.
func (c *Cart) UpdateQuantity(itemID int, delta int) Result {
	i := c.find(itemID)
	if i < 0 {
		return Result{Notice: Notice{LevelError, "Item is not in the cart"}}
	}
	line := c.lines[i]

	// Compare delta against the bounds before adding so huge deltas cannot wrap.
	switch {
	case delta > catalog.MaxQuantity-line.Quantity:
		return Result{Notice: Notice{LevelWarning, fmt.Sprintf("Maximum quantity is %d", catalog.MaxQuantity)}}
	case delta <= -line.Quantity:
		c.removeAt(i)
		return Result{Changed: true, Removed: true, Notice: Notice{LevelSuccess, fmt.Sprintf("%s removed from cart", line.Item.Name)}}
	}

	next := line.Quantity + delta
	if next < line.Item.MinOrder {
		return Result{Notice: Notice{LevelWarning, fmt.Sprintf("Minimum quantity for %s is %d", line.Item.Name, line.Item.MinOrder)}}
	}

	c.lines[i].Quantity = next
	return Result{Changed: true, Notice: Notice{LevelSuccess, fmt.Sprintf("%s quantity updated to %d", line.Item.Name, next)}}
}

// RemoveItem deletes the line for itemID. It reports the removed line, if any.
func (c *Cart) RemoveItem(itemID int) (Line, bool) {
	i := c.find(itemID)
	if i < 0 {
		return Line{}, false
	}
	line := c.lines[i]
	c.removeAt(i)
	return line, true
}

func (c *Cart) removeAt(i int) {
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

// Total is the flat sum of price × quantity over all lines.
func (c *Cart) Total() int64 {
	var total int64
	for _, l := range c.lines {
		total += l.Total()
	}
	return total
}

// Count is the number of pieces across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

type OrderLine struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"price"`
	LineTotal int64  `json:"lineTotal"`
}

// Order is the rendered handoff of a cart to the messaging channel.
type Order struct {
	Lines   []OrderLine `json:"items"`
	Total   int64       `json:"total"`
	Message string      `json:"message"`
	URL     string      `json:"url"`
}

// Checkout renders the order summary and deep link. The cart is left as is;
// the messaging channel confirms the order.
func (c *Cart) Checkout(link whatsapp.Link) (Order, error) {
	if len(c.lines) == 0 {
		return Order{}, ErrEmptyCart
	}

	order := Order{Lines: make([]OrderLine, 0, len(c.lines))}
	summary := make([]string, 0, len(c.lines))
	for _, l := range c.lines {
		ol := OrderLine{Name: l.Item.Name, Quantity: l.Quantity, UnitPrice: l.Item.Price, LineTotal: l.Total()}
		order.Lines = append(order.Lines, ol)
		order.Total += ol.LineTotal
		summary = append(summary, fmt.Sprintf("%s (Qty: %d) - ₹%d", ol.Name, ol.Quantity, ol.LineTotal))
	}

	order.Message = fmt.Sprintf("Hi! I'd like to place an order from Warm Delights:\n\n%s\n\n*Total: ₹%d*\n\nPlease confirm the availability and delivery details.",
		strings.Join(summary, "\n"), order.Total)
	order.URL = link.URL(order.Message)
	return order, nil
}
