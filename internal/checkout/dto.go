package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/pkg/db/models"
	"github.com/storefront-labs/storefront/pkg/enums"
)

// OrderDTO is the checkout response body.
type OrderDTO struct {
	ID         uuid.UUID         `json:"id"`
	ProfileID  uuid.UUID         `json:"profile_id"`
	Status     enums.OrderStatus `json:"status"`
	TotalItems int               `json:"total_items"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	LineItems  []LineItemDTO     `json:"line_items"`
	CreatedAt  time.Time         `json:"created_at"`
}

type LineItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func orderFromModel(o *models.Order) *OrderDTO {
	items := make([]LineItemDTO, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, LineItemDTO{
			ProductID: li.ProductID,
			Name:      li.Name,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
		})
	}
	return &OrderDTO{
		ID:         o.ID,
		ProfileID:  o.ProfileID,
		Status:     o.Status,
		TotalItems: o.TotalItems,
		TotalPrice: o.TotalPrice,
		LineItems:  items,
		CreatedAt:  o.CreatedAt,
	}
}
