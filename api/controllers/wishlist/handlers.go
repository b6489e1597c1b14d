package wishlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storefront-labs/storefront/api/controllers"
	"github.com/storefront-labs/storefront/api/responses"
	wishlistsvc "github.com/storefront-labs/storefront/internal/wishlist"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/logger"
)

type statusResponse struct {
	ProductID string `json:"product_id"`
	Member    bool   `json:"member"`
}

func unavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "wishlist service unavailable")
}

// WishlistFetch lists the caller's wishlist in insertion order.
func WishlistFetch(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		subject, err := controllers.SubjectID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.List(r.Context(), subject.String())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if entries == nil {
			entries = []wishlistsvc.Entry{}
		}
		responses.WriteSuccess(w, map[string]any{"items": entries})
	}
}

// WishlistToggle flips membership. The response reflects the local result
// even when the server mirror write was queued for replay.
func WishlistToggle(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		subject, err := controllers.SubjectID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := controllers.PathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Toggle(r.Context(), subject.String(), productID.String())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func WishlistStatus(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		subject, err := controllers.SubjectID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := controllers.PathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		member, err := svc.IsMember(r.Context(), subject.String(), productID.String())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, statusResponse{ProductID: productID.String(), Member: member})
	}
}

// WishlistResync drops the cached set and rebuilds it from the server copy.
func WishlistResync(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		subject, err := controllers.SubjectID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.Resync(r.Context(), subject.String())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if entries == nil {
			entries = []wishlistsvc.Entry{}
		}
		responses.WriteSuccess(w, map[string]any{"items": entries})
	}
}
