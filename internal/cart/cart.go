// Package cart holds a subject's shopping cart: an ordered set of line items
// keyed by product id with totals derived on demand.
package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxQuantity caps a single line. Merges and updates past it are clamped,
// which keeps quantities inside the orders table's integer columns.
const MaxQuantity = 999

// Item is one cart line. Quantity is always at least 1 once stored.
type Item struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageRef  string          `json:"image_ref"`
	Quantity  int             `json:"quantity"`
}

// Cart is not safe for concurrent use; Service serializes access per subject.
type Cart struct {
	items []Item
	index map[string]int
}

// New builds a cart from stored items, dropping entries that violate the
// invariants and merging duplicates.
func New(items ...Item) *Cart {
	c := &Cart{index: make(map[string]int)}
	for _, item := range items {
		c.AddItem(item)
	}
	return c
}

// AddItem inserts item or merges its quantity into the existing entry, capped
// at MaxQuantity. A non-positive quantity, blank id, or negative price is
// ignored.
func (c *Cart) AddItem(item Item) {
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" || item.Quantity <= 0 || item.UnitPrice.IsNegative() {
		return
	}
	if i, ok := c.index[item.ID]; ok {
		c.items[i].Quantity = clampQuantity(c.items[i].Quantity, item.Quantity)
		return
	}
	item.Quantity = min(item.Quantity, MaxQuantity)
	c.index[item.ID] = len(c.items)
	c.items = append(c.items, item)
}

// RemoveItem deletes the entry if present.
func (c *Cart) RemoveItem(id string) {
	i, ok := c.index[id]
	if !ok {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.reindex()
}

// UpdateQuantity sets the quantity exactly, up to MaxQuantity; qty <= 0
// removes the entry.
func (c *Cart) UpdateQuantity(id string, qty int) {
	if qty <= 0 {
		c.RemoveItem(id)
		return
	}
	if i, ok := c.index[id]; ok {
		c.items[i].Quantity = min(qty, MaxQuantity)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
	c.index = make(map[string]int)
}

// Get returns the entry for id.
func (c *Cart) Get(id string) (Item, bool) {
	i, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Items returns a copy of the entries in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Len is the number of distinct entries.
func (c *Cart) Len() int {
	return len(c.items)
}

// TotalItems is the sum of quantities.
func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice is the sum of quantity times unit price.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// clampQuantity adds two positive quantities without passing MaxQuantity.
func clampQuantity(have, add int) int {
	if add >= MaxQuantity-have {
		return MaxQuantity
	}
	return have + add
}

func (c *Cart) reindex() {
	c.index = make(map[string]int, len(c.items))
	for i, item := range c.items {
		c.index[item.ID] = i
	}
}
