package controllers

import (
	"net/http"

	"github.com/storefront-labs/storefront/api/responses"
	"github.com/storefront-labs/storefront/internal/checkout"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/logger"
)

// Checkout converts the caller's cart into an order.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		subject, err := SubjectID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Checkout(r.Context(), subject.String())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// ListOrders returns the caller's order history.
func ListOrders(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		subject, err := SubjectID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orders, err := svc.ListOrders(r.Context(), subject.String())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}
