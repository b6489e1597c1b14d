package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront-labs/storefront/pkg/db/models"
)

// ProductDTO is the public catalog shape.
type ProductDTO struct {
	ID         uuid.UUID       `json:"id"`
	MerchantID uuid.UUID       `json:"merchant_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	ImageRef   string          `json:"image_ref"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CreateProductInput is the merchant payload for a new catalog entry.
type CreateProductInput struct {
	Name      string          `json:"name" validate:"required,min=1,max=200"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageRef  string          `json:"image_ref" validate:"omitempty,max=2048"`
}

// ListParams pages through the catalog.
type ListParams struct {
	MerchantID *uuid.UUID
	Limit      int
	Offset     int
}

// ListResult is a page of products.
type ListResult struct {
	Items  []ProductDTO `json:"items"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func FromModel(p *models.Product) ProductDTO {
	return ProductDTO{
		ID:         p.ID,
		MerchantID: p.MerchantID,
		Name:       p.Name,
		UnitPrice:  p.UnitPrice,
		ImageRef:   p.ImageRef,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
