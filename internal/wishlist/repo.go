package wishlist

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront-labs/storefront/pkg/db/models"
)

// Repository is the server-side wishlist mirror.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a wishlist repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SetPresence inserts (ignoring duplicates) or deletes the profile/product pair.
func (r *Repository) SetPresence(ctx context.Context, profileID, productID uuid.UUID, present bool) error {
	if profileID == uuid.Nil || productID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	if !present {
		return r.db.WithContext(ctx).
			Where("profile_id = ? AND product_id = ?", profileID, productID).
			Delete(&models.WishlistItem{}).
			Error
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "profile_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(&models.WishlistItem{ProfileID: profileID, ProductID: productID}).
		Error
}

type entryRow struct {
	ProductID uuid.UUID       `gorm:"column:product_id"`
	Name      string          `gorm:"column:name"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price"`
	ImageRef  string          `gorm:"column:image_ref"`
	AddedAt   time.Time       `gorm:"column:added_at"`
}

// ListEntries returns the mirrored wishlist joined with current product data,
// oldest first so it matches local insertion order.
func (r *Repository) ListEntries(ctx context.Context, profileID uuid.UUID) ([]Entry, error) {
	var rows []entryRow
	err := r.db.WithContext(ctx).
		Table("wishlist_items AS wi").
		Select("wi.product_id, p.name, p.unit_price, p.image_ref, wi.created_at AS added_at").
		Joins("JOIN products p ON p.id = wi.product_id").
		Where("wi.profile_id = ?", profileID).
		Order("wi.created_at ASC").
		Order("wi.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry{
			ProductID: row.ProductID.String(),
			Name:      row.Name,
			UnitPrice: row.UnitPrice,
			ImageRef:  row.ImageRef,
			AddedAt:   row.AddedAt,
		})
	}
	return out, nil
}
