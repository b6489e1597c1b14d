package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry owned by a merchant profile.
type Product struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	MerchantID uuid.UUID       `gorm:"column:merchant_id;type:uuid;not null;index:products_merchant_id_idx"`
	Name       string          `gorm:"column:name;not null"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	ImageRef   string          `gorm:"column:image_ref;not null;default:''"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
