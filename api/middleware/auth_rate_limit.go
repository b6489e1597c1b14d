package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/storefront-labs/storefront/api/responses"
	"github.com/storefront-labs/storefront/pkg/config"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/logger"
)

// maxAuthBody caps how much of an auth request is buffered to find the email.
const maxAuthBody = 64 << 10

// RateLimitStore counts hits in fixed windows.
type RateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy limits one auth endpoint per client IP and per email.
// A zero limit disables that dimension.
type AuthRateLimitPolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func LoginRateLimitPolicy(cfg config.AuthRateLimitConfig) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{Name: "login", Window: cfg.LoginWindow, PerIP: cfg.LoginIPLimit, PerEmail: cfg.LoginEmailLimit}
}

func RegisterRateLimitPolicy(cfg config.AuthRateLimitConfig) AuthRateLimitPolicy {
	return AuthRateLimitPolicy{Name: "register", Window: cfg.RegisterWindow, PerIP: cfg.RegisterIPLimit, PerEmail: cfg.RegisterEmailLimit}
}

func (p AuthRateLimitPolicy) active() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

type bucket struct {
	dimension string
	id        string
	limit     int
}

// AuthRateLimit rejects requests over either limit with 429 and Retry-After.
// Counter failures answer 503 so auth endpoints never run unthrottled.
func AuthRateLimit(policy AuthRateLimitPolicy, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.active() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			buckets := make([]bucket, 0, 2)
			if policy.PerIP > 0 {
				if ip := clientIP(r); ip != "" {
					buckets = append(buckets, bucket{dimension: "ip", id: ip, limit: policy.PerIP})
				}
			}
			if policy.PerEmail > 0 {
				email, err := peekEmail(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				if email != "" {
					buckets = append(buckets, bucket{dimension: "email", id: hashValue(email), limit: policy.PerEmail})
				}
			}

			for _, b := range buckets {
				key := store.RateLimitKey(strings.Join([]string{"auth", policy.Name, b.dimension, b.id}, ":"))
				count, err := store.IncrWithTTL(ctx, key, policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if count > int64(b.limit) {
					rejectRateLimited(ctx, logg, w, policy, b, count)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy AuthRateLimitPolicy, b bucket, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":    policy.Name,
			"dimension": b.dimension,
			"attempts":  count,
			"limit":     b.limit,
		}), "auth rate limit exceeded")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Seconds())))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

// peekEmail reads the JSON email field and restores the body for the handler.
func peekEmail(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBody))
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(payload.Email)), nil
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
