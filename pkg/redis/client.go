package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storefront-labs/storefront/pkg/config"
	"github.com/storefront-labs/storefront/pkg/logger"
)

const (
	keyNamespace      = "sf"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	sessionPrefix     = "session"
	cartPrefix        = "cart"
	wishlistPrefix    = "wishlist"
	pendingSegment    = "pending"
	lockPrefix        = "lock"
)

// ErrNotInitialized is returned when a zero-value Client is used.
var ErrNotInitialized = errors.New("redis client not initialized")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	HSet(context.Context, string, ...any) *redis.IntCmd
	HDel(context.Context, string, ...string) *redis.IntCmd
	HGet(context.Context, string, string) *redis.StringCmd
	HGetAll(context.Context, string) *redis.MapStringStringCmd
	SAdd(context.Context, string, ...any) *redis.IntCmd
	SRem(context.Context, string, ...any) *redis.IntCmd
	SMembers(context.Context, string) *redis.StringSliceCmd
	Eval(context.Context, string, []string, ...any) *redis.Cmd
}

// Client wraps the redis connection helpers needed by the storefront.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore backs the replay middleware: SetNX reserves a key while
// the first request runs, Set stores the final response, Del frees a key
// whose request failed server side.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Set(context.Context, string, any, time.Duration) error
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
}

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout+opts.ReadTimeout)
	defer cancel()
	if err := raw.Ping(pingCtx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB, "pool_size": opts.PoolSize}), "redis ready")
	}
	return NewWithClient(raw), nil
}

// NewWithClient wraps an already configured go-redis client.
func NewWithClient(raw *redis.Client) *Client {
	return &Client{store: raw, raw: raw}
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Set stores a string value with an optional TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.store == nil {
		return ErrNotInitialized
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns a string value stored at key. Missing keys yield redis.Nil.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", ErrNotInitialized
	}
	return c.store.Get(ctx, key).Result()
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, ErrNotInitialized
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// IncrWithTTL counts within a fixed window: the first increment starts the
// window and later ones leave it alone. The script also repairs a counter
// that somehow lost its TTL, so a window can never become permanent.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.store == nil {
		return 0, ErrNotInitialized
	}
	return c.store.Eval(ctx, incrWindowScript, []string{key}, ttl.Milliseconds()).Int64()
}

// Del removes the provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.store == nil {
		return ErrNotInitialized
	}
	if len(keys) == 0 {
		return nil
	}
	return c.store.Del(ctx, keys...).Err()
}

// HSet writes a single hash field.
func (c *Client) HSet(ctx context.Context, key, field string, value any) error {
	if c.store == nil {
		return ErrNotInitialized
	}
	return c.store.HSet(ctx, key, field, value).Err()
}

// HDel removes hash fields.
func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	if c.store == nil {
		return ErrNotInitialized
	}
	if len(fields) == 0 {
		return nil
	}
	return c.store.HDel(ctx, key, fields...).Err()
}

// HGet reads one hash field; ok is false when the field is absent.
func (c *Client) HGet(ctx context.Context, key, field string) (value string, ok bool, err error) {
	if c.store == nil {
		return "", false, ErrNotInitialized
	}
	value, err = c.store.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	return value, err == nil, err
}

// HDelIfEquals removes field only while it still holds value.
func (c *Client) HDelIfEquals(ctx context.Context, key, field, value string) (bool, error) {
	if c.store == nil {
		return false, ErrNotInitialized
	}
	n, err := c.store.Eval(ctx, hdelIfEqualsScript, []string{key}, field, value).Int64()
	return n == 1, err
}

// HGetAll returns every field of a hash; a missing key yields an empty map.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if c.store == nil {
		return nil, ErrNotInitialized
	}
	return c.store.HGetAll(ctx, key).Result()
}

// SAdd adds members to a set.
func (c *Client) SAdd(ctx context.Context, key string, members ...string) error {
	if c.store == nil {
		return ErrNotInitialized
	}
	if len(members) == 0 {
		return nil
	}
	return c.store.SAdd(ctx, key, toAny(members)...).Err()
}

// SRem removes members from a set.
func (c *Client) SRem(ctx context.Context, key string, members ...string) error {
	if c.store == nil {
		return ErrNotInitialized
	}
	if len(members) == 0 {
		return nil
	}
	return c.store.SRem(ctx, key, toAny(members)...).Err()
}

// SMembers lists the members of a set.
func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	if c.store == nil {
		return nil, ErrNotInitialized
	}
	return c.store.SMembers(ctx, key).Result()
}

// Server-side scripts keep each read-check-write atomic. For the lock
// scripts KEYS[1] is the lock and ARGV[1] the owner token; for the hash
// script ARGV is field then expected value.
const (
	incrWindowScript     = `local n = redis.call("INCR", KEYS[1]) if tonumber(ARGV[1]) > 0 and redis.call("PTTL", KEYS[1]) < 0 then redis.call("PEXPIRE", KEYS[1], ARGV[1]) end return n`
	releaseIfOwnerScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`
	extendIfOwnerScript  = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) end return 0`
	hdelIfEqualsScript   = `if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then return redis.call("HDEL", KEYS[1], ARGV[1]) end return 0`
)

// ReleaseIfOwner deletes key only while it still holds owner.
func (c *Client) ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error) {
	if c.store == nil {
		return false, ErrNotInitialized
	}
	n, err := c.store.Eval(ctx, releaseIfOwnerScript, []string{key}, owner).Int64()
	return n == 1, err
}

// ExtendIfOwner resets the TTL of key only while it still holds owner.
func (c *Client) ExtendIfOwner(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, ErrNotInitialized
	}
	n, err := c.store.Eval(ctx, extendIfOwnerScript, []string{key}, owner, ttl.Milliseconds()).Int64()
	return n == 1, err
}

// IdempotencyKey returns a namespaced key for idempotency storage.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.buildKey(idempotencyPrefix, scope, id)
}

// RateLimitKey returns a namespaced key for rate limit counters.
func (c *Client) RateLimitKey(scope string) string {
	return c.buildKey(rateLimitPrefix, scope)
}

// AccessSessionKey builds a namespaced key for access-token-based sessions.
func (c *Client) AccessSessionKey(accessID string) string {
	return c.buildKey(sessionPrefix, "access", accessID)
}

// CartKey returns the snapshot key for a subject's cart.
func (c *Client) CartKey(subjectID string) string {
	return c.buildKey(cartPrefix, subjectID)
}

// WishlistKey returns the local cache key for a subject's wishlist.
func (c *Client) WishlistKey(subjectID string) string {
	return c.buildKey(wishlistPrefix, subjectID)
}

// WishlistPendingKey returns the hash holding a subject's unmirrored toggles.
func (c *Client) WishlistPendingKey(subjectID string) string {
	return c.buildKey(wishlistPrefix, pendingSegment, subjectID)
}

// WishlistPendingIndexKey returns the set of subjects with unmirrored toggles.
func (c *Client) WishlistPendingIndexKey() string {
	return c.buildKey(wishlistPrefix, pendingSegment)
}

// LockKey returns a namespaced key for distributed locks.
func (c *Client) LockKey(name string) string {
	return c.buildKey(lockPrefix, name)
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return ErrNotInitialized
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

func (c *Client) buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
