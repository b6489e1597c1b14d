package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront/api/middleware"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
)

// SubjectID returns the subject seeded by RequireAccess.
func SubjectID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(middleware.UserIDFromContext(r.Context()))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "subject missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid subject")
	}
	return id, nil
}

// PathUUID parses a UUID route parameter.
func PathUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+field).
			WithDetails(map[string]any{"field": field})
	}
	return id, nil
}
