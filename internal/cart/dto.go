package cart

import "github.com/shopspring/decimal"

// View is the cart as returned to clients, totals included.
type View struct {
	Items      []Item          `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// AddItemRequest adds a catalog product to the cart. The quantity bounds
// mirror MaxQuantity.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1,max=999"`
}

// UpdateQuantityRequest sets an entry's quantity; zero or less removes it.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=999"`
}

func viewOf(c *Cart) View {
	items := c.Items()
	if items == nil {
		items = []Item{}
	}
	return View{
		Items:      items,
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice(),
	}
}
