package profiles

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
)

// Service exposes the admin operations on profiles.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*ProfileDTO, error)
	List(ctx context.Context, params ListParams) ([]ProfileDTO, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role enums.Role) (*ProfileDTO, error)
}

type service struct {
	repo *Repository
}

// NewService builds the profiles service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile repo is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProfileDTO, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "load profile")
	}
	return FromModel(profile), nil
}

func (s *service) List(ctx context.Context, params ListParams) ([]ProfileDTO, error) {
	if params.Role != nil && !params.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role filter")
	}
	rows, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list profiles")
	}
	out := make([]ProfileDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// UpdateRole changes the role; the next guarded request observes it.
func (s *service) UpdateRole(ctx context.Context, id uuid.UUID, role enums.Role) (*ProfileDTO, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile id is required")
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, mapRepoError(err, "update role")
	}
	return s.Get(ctx, id)
}

func mapRepoError(err error, action string) error {
	if errors.Is(err, ErrNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "profile not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
