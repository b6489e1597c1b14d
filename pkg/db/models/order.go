package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront/pkg/enums"
)

// Order is the record written when a cart is checked out.
type Order struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ProfileID  uuid.UUID         `gorm:"column:profile_id;type:uuid;not null;index:orders_profile_id_idx"`
	Status     enums.OrderStatus `gorm:"column:status;type:text;not null;default:'placed'"`
	TotalItems int               `gorm:"column:total_items;not null"`
	TotalPrice decimal.Decimal   `gorm:"column:total_price;type:numeric(12,2);not null"`
	LineItems  []OrderLineItem   `gorm:"foreignKey:OrderID"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderLineItem snapshots one cart entry at checkout time.
type OrderLineItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index:order_line_items_order_id_idx"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name      string          `gorm:"column:name;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (o *OrderLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
