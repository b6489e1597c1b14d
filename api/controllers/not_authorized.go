package controllers

import (
	"net/http"

	"github.com/storefront-labs/storefront/api/responses"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
)

// NotAuthorized is the terminal page for denied navigations.
func NotAuthorized() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeForbidden, "you are not authorized to view this page"))
	}
}
