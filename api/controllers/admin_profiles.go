package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/storefront-labs/storefront/api/responses"
	"github.com/storefront-labs/storefront/api/validators"
	"github.com/storefront-labs/storefront/internal/profiles"
	"github.com/storefront-labs/storefront/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/logger"
)

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=customer merchant admin"`
}

// AdminListProfiles pages through profiles, optionally filtered by ?role=.
func AdminListProfiles(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}
		limit, offset, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := profiles.ListParams{Limit: limit, Offset: offset}
		if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
			role, err := enums.ParseRole(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role filter"))
				return
			}
			params.Role = &role
		}

		items, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "limit": limit, "offset": offset})
	}
}

// AdminUpdateProfileRole changes a profile's role; the guard reads the new
// role on that profile's next navigation.
func AdminUpdateProfileRole(svc profiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}
		id, err := PathUUID(chi.URLParam(r, "profileId"), "profileId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateRoleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.UpdateRole(r.Context(), id, enums.Role(body.Role))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(r.Context(), map[string]any{
				"target_profile_id": id.String(),
				"new_role":          body.Role,
			}), "profile.role_updated")
		}
		responses.WriteSuccess(w, profile)
	}
}
