package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront/internal/products"
	"github.com/storefront-labs/storefront/pkg/db/models"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/keylock"
)

type productLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service exposes per-subject cart operations.
type Service interface {
	Get(ctx context.Context, subjectID string) (View, error)
	AddItem(ctx context.Context, subjectID, productID string, quantity int) (View, error)
	UpdateQuantity(ctx context.Context, subjectID, productID string, quantity int) (View, error)
	RemoveItem(ctx context.Context, subjectID, productID string) (View, error)
	Clear(ctx context.Context, subjectID string) error
	Teardown(ctx context.Context, subjectID string) error
	// Mutate runs fn on the subject's cart under the subject lock and saves the result.
	Mutate(ctx context.Context, subjectID string, fn func(*Cart) error) (View, error)
}

// ServiceParams groups dependencies for the cart service.
type ServiceParams struct {
	Store    *Store
	Products productLookup
	Locks    *keylock.Locker
}

type service struct {
	store    *Store
	products productLookup
	locks    *keylock.Locker
}

// NewService builds the cart service. Locks may be shared with other
// per-subject services; a private locker is created when omitted.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart store is required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product lookup is required")
	}
	locks := params.Locks
	if locks == nil {
		locks = keylock.New()
	}
	return &service{store: params.Store, products: params.Products, locks: locks}, nil
}

func (s *service) Get(ctx context.Context, subjectID string) (View, error) {
	if err := requireSubject(subjectID); err != nil {
		return View{}, err
	}
	c, err := s.store.Load(ctx, subjectID)
	if err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return viewOf(c), nil
}

// AddItem resolves the product snapshot from the catalog; clients only send the id.
func (s *service) AddItem(ctx context.Context, subjectID, productID string, quantity int) (View, error) {
	id, err := uuid.Parse(strings.TrimSpace(productID))
	if err != nil {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id")
	}
	if quantity <= 0 {
		return s.Get(ctx, subjectID)
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return View{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return View{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	return s.Mutate(ctx, subjectID, func(c *Cart) error {
		c.AddItem(Item{
			ID:        product.ID.String(),
			Name:      product.Name,
			UnitPrice: product.UnitPrice,
			ImageRef:  product.ImageRef,
			Quantity:  quantity,
		})
		return nil
	})
}

func (s *service) UpdateQuantity(ctx context.Context, subjectID, productID string, quantity int) (View, error) {
	return s.Mutate(ctx, subjectID, func(c *Cart) error {
		c.UpdateQuantity(productID, quantity)
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, subjectID, productID string) (View, error) {
	return s.Mutate(ctx, subjectID, func(c *Cart) error {
		c.RemoveItem(productID)
		return nil
	})
}

func (s *service) Clear(ctx context.Context, subjectID string) error {
	_, err := s.Mutate(ctx, subjectID, func(c *Cart) error {
		c.Clear()
		return nil
	})
	return err
}

// Teardown ends the cart's lifecycle for the subject (sign-out).
func (s *service) Teardown(ctx context.Context, subjectID string) error {
	if err := requireSubject(subjectID); err != nil {
		return err
	}
	unlock := s.locks.Lock(lockKey(subjectID))
	defer unlock()
	if err := s.store.Delete(ctx, subjectID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart")
	}
	return nil
}

func (s *service) Mutate(ctx context.Context, subjectID string, fn func(*Cart) error) (View, error) {
	if err := requireSubject(subjectID); err != nil {
		return View{}, err
	}
	unlock := s.locks.Lock(lockKey(subjectID))
	defer unlock()

	c, err := s.store.Load(ctx, subjectID)
	if err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := fn(c); err != nil {
		return View{}, err
	}
	if err := s.store.Save(ctx, subjectID, c); err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return viewOf(c), nil
}

func requireSubject(subjectID string) error {
	if strings.TrimSpace(subjectID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "subject is required")
	}
	return nil
}

func lockKey(subjectID string) string {
	return "cart:" + subjectID
}
