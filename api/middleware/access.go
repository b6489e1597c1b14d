package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/storefront-labs/storefront/api/responses"
	"github.com/storefront-labs/storefront/internal/access"
	pkgAuth "github.com/storefront-labs/storefront/pkg/auth"
	"github.com/storefront-labs/storefront/pkg/config"
	"github.com/storefront-labs/storefront/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/logger"
)

const defaultNotAuthorizedURL = "/not-authorized"

type accessAuthorizer interface {
	Authorize(ctx context.Context, token string, allowed ...enums.Role) access.Outcome
}

// RequireAccess admits only subjects whose current role is in allowed.
// Browser navigations are redirected with 303 so the protected page never
// lands in history; API callers get 403 with the redirect target in details.
func RequireAccess(guard accessAuthorizer, cfg config.AccessConfig, logg *logger.Logger, allowed ...enums.Role) func(http.Handler) http.Handler {
	target := strings.TrimSpace(cfg.NotAuthorizedURL)
	if target == "" {
		target = defaultNotAuthorizedURL
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if guard == nil {
				denyAccess(ctx, logg, w, r, target, access.ErrSessionUnavailable)
				return
			}

			token, _ := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			outcome := guard.Authorize(ctx, token, allowed...)
			if !outcome.Allowed() {
				denyAccess(ctx, logg, w, r, target, outcome.Reason)
				return
			}

			ctx = WithUserID(ctx, outcome.SubjectID)
			ctx = WithRole(ctx, outcome.Role)
			if logg != nil {
				ctx = logg.WithSubject(ctx, outcome.SubjectID)
				ctx = logg.WithActorRole(ctx, string(outcome.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func denyAccess(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, r *http.Request, target string, reason error) {
	if wantsHTML(r) {
		if logg != nil && reason != nil {
			logg.WarnErr(logg.WithField(ctx, "path", r.URL.Path), "access.denied", reason)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	err := pkgerrors.Wrap(pkgerrors.CodeForbidden, reason, "access denied").
		WithDetails(map[string]any{"redirect": target})
	responses.WriteError(ctx, logg, w, err)
}

func wantsHTML(r *http.Request) bool {
	accept := strings.ToLower(r.Header.Get("Accept"))
	return strings.Contains(accept, "text/html")
}
