package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"

	"github.com/storefront-labs/storefront/api/responses"
)

const (
	sessionTokenHeader   = "X-Storefront-Token"
	idempotencyKeyHeader = "Idempotency-Key"
	corsPreflightMaxAge  = 5 * time.Minute
)

// CORS applies the storefront origin policy. The rotated session token and
// request id are exposed so browser clients can read them.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	opts := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			sessionTokenHeader, idempotencyKeyHeader, responses.RequestIDHeader,
		},
		ExposedHeaders:   []string{sessionTokenHeader, responses.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           int(corsPreflightMaxAge.Seconds()),
	}
	return cors.Handler(opts)
}
