// Package redistest starts a miniredis server wrapped in the storefront client.
package redistest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/storefront-labs/storefront/pkg/redis"
)

// New starts an in-process Redis and returns the wrapped client with its server.
func New(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return redis.NewWithClient(raw), srv
}
