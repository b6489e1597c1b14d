package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/storefront-labs/storefront/api/responses"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/logger"
	pkgredis "github.com/storefront-labs/storefront/pkg/redis"
)

const (
	replayWindow         = 24 * time.Hour
	checkoutReplayWindow = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can hold its key.
	inFlightTTL = 2 * time.Minute
)

type idempotentRoute struct {
	method  string
	pattern string
	window  time.Duration
}

// idempotentRoutes lists the writes that replay on a repeated
// Idempotency-Key. Other routes pass straight through.
var idempotentRoutes = []idempotentRoute{
	{http.MethodPost, "/api/v1/auth/register", replayWindow},
	{http.MethodPost, "/api/merchant/v1/products", replayWindow},
	{http.MethodPatch, "/api/admin/v1/profiles/{profileId}/role", replayWindow},
	{http.MethodPost, "/api/v1/checkout", checkoutReplayWindow},
}

// storedResponse is what a key holds. State is "pending" while the first
// request runs and "done" once its response is captured.
type storedResponse struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

const (
	statePending = "pending"
	stateDone    = "done"
)

// Idempotency replays the first response for a repeated Idempotency-Key. A key reused with a different body is a
// CodeIdempotency error. A key whose first request is still running is a
// CodeConflict error. 5xx responses are not kept, so the client may retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			window, ok := replayWindowFor(r)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintRequest(r, body)
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			pending, _ := json.Marshal(storedResponse{State: statePending, Fingerprint: fingerprint})
			reserved, err := store.SetNX(ctx, key, string(pending), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayStored(ctx, store, key, fingerprint, logg, w)
				return
			}

			capture := &bodyCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			// the client already has its answer; bookkeeping must outlive a cancelled request
			persistCtx := context.WithoutCancel(ctx)

			status := capture.statusOr(http.StatusOK)
			if status >= http.StatusInternalServerError {
				if err := store.Del(persistCtx, key); err != nil && logg != nil {
					logg.WarnErr(ctx, "idempotency key release failed", err)
				}
				return
			}
			done, _ := json.Marshal(storedResponse{
				State:       stateDone,
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.buf.Bytes(),
			})
			if err := store.Set(persistCtx, key, string(done), window); err != nil && logg != nil {
				logg.WarnErr(ctx, "idempotency response not stored", err)
			}
		})
	}
}

func replayStored(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string, logg *logger.Logger, w http.ResponseWriter) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// expired between SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotent request still settling; retry"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
	case stored.State != stateDone:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

// fingerprintRequest hashes what makes two requests "the same": method, path and body.
func fingerprintRequest(r *http.Request, body []byte) string {
	h := sha256.New()
	_, _ = io.WriteString(h, r.Method+" "+r.URL.Path+"\n")
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func replayWindowFor(r *http.Request) (time.Duration, bool) {
	path := routePattern(r)
	for _, route := range idempotentRoutes {
		if route.method == r.Method && matchPattern(route.pattern, path) {
			return route.window, true
		}
	}
	return 0, false
}

// routePattern prefers chi's matched pattern. Middleware mounted on a
// sub-router runs before the leaf matches and only sees "/*", so the raw
// path is used then.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" && !strings.HasSuffix(p, "*") {
			return p
		}
	}
	return r.URL.Path
}

// matchPattern compares path segment by segment; a {param} segment in
// pattern matches any non-empty segment.
func matchPattern(pattern, path string) bool {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i, seg := range want {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if seg != got[i] {
			return false
		}
	}
	return true
}

type bodyCapture struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (c *bodyCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *bodyCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *bodyCapture) statusOr(fallback int) int {
	if c.status == 0 {
		return fallback
	}
	return c.status
}
