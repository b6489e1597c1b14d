package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront/api/responses"
	"github.com/storefront-labs/storefront/pkg/logger"
)

// Inbound ids are echoed into headers and logs, so only short opaque tokens are trusted.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID reuses a well-formed X-Request-Id from the caller or mints one,
// echoes it on the response and binds it to the request logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(responses.RequestIDHeader)
			if !validRequestID.MatchString(id) {
				id = uuid.NewString()
			}
			w.Header().Set(responses.RequestIDHeader, id)

			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
