package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WishlistItem mirrors a profile's liked product; at most one row per pair.
type WishlistItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProfileID uuid.UUID `gorm:"column:profile_id;type:uuid;not null;index:wishlist_items_profile_id_idx;uniqueIndex:wishlist_items_profile_product_key"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:wishlist_items_profile_product_key"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (w *WishlistItem) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
