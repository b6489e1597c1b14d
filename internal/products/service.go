package products

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront/pkg/db/models"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
)

// Service exposes catalog reads and merchant writes.
type Service interface {
	List(ctx context.Context, params ListParams) (ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (ProductDTO, error)
	Create(ctx context.Context, merchantID uuid.UUID, input CreateProductInput) (ProductDTO, error)
	ListMine(ctx context.Context, merchantID uuid.UUID, limit, offset int) (ListResult, error)
}

type service struct {
	repo *Repository
}

// NewService builds the catalog service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product repo is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (ListResult, error) {
	limit, offset := normalizePage(params.Limit, params.Offset)
	params.Limit, params.Offset = limit, offset
	rows, err := s.repo.List(ctx, params)
	if err != nil {
		return ListResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	items := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	return ListResult{Items: items, Limit: limit, Offset: offset}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ProductDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return ProductDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return FromModel(product), nil
}

func (s *service) Create(ctx context.Context, merchantID uuid.UUID, input CreateProductInput) (ProductDTO, error) {
	if merchantID == uuid.Nil {
		return ProductDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "merchant id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return ProductDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.UnitPrice.IsNegative() {
		return ProductDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "unit_price must be >= 0")
	}

	created, err := s.repo.Create(ctx, &models.Product{
		MerchantID: merchantID,
		Name:       name,
		UnitPrice:  input.UnitPrice.Round(2),
		ImageRef:   strings.TrimSpace(input.ImageRef),
	})
	if err != nil {
		return ProductDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return FromModel(created), nil
}

func (s *service) ListMine(ctx context.Context, merchantID uuid.UUID, limit, offset int) (ListResult, error) {
	return s.List(ctx, ListParams{MerchantID: &merchantID, Limit: limit, Offset: offset})
}
