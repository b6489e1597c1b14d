package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront/internal/cart"
	"github.com/storefront-labs/storefront/pkg/db/models"
	"github.com/storefront-labs/storefront/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartMutator interface {
	Mutate(ctx context.Context, subjectID string, fn func(*cart.Cart) error) (cart.View, error)
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// Service turns the subject's cart into an order.
type Service interface {
	Checkout(ctx context.Context, subjectID string) (*OrderDTO, error)
	ListOrders(ctx context.Context, subjectID string) ([]OrderDTO, error)
}

// ServiceParams groups checkout dependencies.
type ServiceParams struct {
	Tx       txRunner
	Repo     *Repository
	Carts    cartMutator
	Products productLoader
	Logger   *logger.Logger
}

type service struct {
	tx       txRunner
	repo     *Repository
	carts    cartMutator
	products productLoader
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:       params.Tx,
		repo:     params.Repo,
		carts:    params.Carts,
		products: params.Products,
		logg:     logg,
	}, nil
}

// Checkout runs under the cart lock: the order is committed before the cart
// is cleared, and a failure before the commit leaves the cart untouched. Once
// the order exists the caller gets it even if clearing the cart fails, so a
// retry never places the same cart twice.
func (s *service) Checkout(ctx context.Context, subjectID string) (*OrderDTO, error) {
	profileID, err := uuid.Parse(subjectID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "subject is required")
	}

	var placed *models.Order
	_, err = s.carts.Mutate(ctx, subjectID, func(c *cart.Cart) error {
		if c.Len() == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		order, err := s.buildOrder(ctx, profileID, c.Items())
		if err != nil {
			return err
		}
		if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).CreateOrder(ctx, order)
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		placed = order
		c.Clear()
		return nil
	})
	if err != nil && placed == nil {
		return nil, err
	}
	if err != nil {
		s.logg.WarnErr(s.logg.WithFields(ctx, map[string]any{
			"order_id":   placed.ID.String(),
			"subject_id": subjectID,
		}), "order placed but cart was not cleared", err)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":    placed.ID.String(),
		"subject_id":  subjectID,
		"total_items": placed.TotalItems,
	}), "order placed")
	return orderFromModel(placed), nil
}

func (s *service) ListOrders(ctx context.Context, subjectID string) ([]OrderDTO, error) {
	profileID, err := uuid.Parse(subjectID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "subject is required")
	}
	rows, err := s.repo.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *orderFromModel(&rows[i]))
	}
	return out, nil
}

// buildOrder reprices every line from the catalog; cart snapshots are display data.
func (s *service) buildOrder(ctx context.Context, profileID uuid.UUID, items []cart.Item) (*models.Order, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		id, err := uuid.Parse(item.ID)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains an invalid product id").
				WithDetails(map[string]any{"product_id": item.ID})
		}
		ids = append(ids, id)
	}

	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	order := &models.Order{
		ProfileID:  profileID,
		Status:     enums.OrderStatusPlaced,
		TotalPrice: decimal.Zero,
		LineItems:  make([]models.OrderLineItem, 0, len(items)),
	}
	for i, item := range items {
		product, ok := catalog[ids[i]]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is no longer available").
				WithDetails(map[string]any{"product_id": item.ID})
		}
		order.LineItems = append(order.LineItems, models.OrderLineItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.UnitPrice,
			Quantity:  item.Quantity,
		})
		order.TotalItems += item.Quantity
		order.TotalPrice = order.TotalPrice.Add(product.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return order, nil
}
