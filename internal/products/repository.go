package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront/pkg/db/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("product not found")

// Repository exposes product persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a products repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// FindByID loads a product by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the listed products keyed by id; missing ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// List returns products newest first, optionally scoped to one merchant.
func (r *Repository) List(ctx context.Context, params ListParams) ([]models.Product, error) {
	limit, offset := normalizePage(params.Limit, params.Offset)
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if params.MerchantID != nil {
		query = query.Where("merchant_id = ?", *params.MerchantID)
	}
	var rows []models.Product
	if err := query.Order("created_at DESC").Order("id ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
