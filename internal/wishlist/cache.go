package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	WishlistKey(subjectID string) string
}

// Cache is the subject-local copy of the wishlist.
type Cache struct {
	redis cacheStore
	ttl   time.Duration
}

func NewCache(redis cacheStore, ttl time.Duration) *Cache {
	return &Cache{redis: redis, ttl: ttl}
}

// Load returns the cached set; ok is false on a cache miss.
func (c *Cache) Load(ctx context.Context, subjectID string) (set *Set, ok bool, err error) {
	raw, err := c.redis.Get(ctx, c.redis.WishlistKey(subjectID))
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load wishlist cache: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false, fmt.Errorf("decode wishlist cache: %w", err)
	}
	return NewSet(entries...), true, nil
}

// Save stores the set. An empty set is still cached so it is not rebuilt on every read.
func (c *Cache) Save(ctx context.Context, subjectID string, set *Set) error {
	payload, err := json.Marshal(set.Items())
	if err != nil {
		return fmt.Errorf("encode wishlist cache: %w", err)
	}
	if err := c.redis.Set(ctx, c.redis.WishlistKey(subjectID), string(payload), c.ttl); err != nil {
		return fmt.Errorf("save wishlist cache: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, subjectID string) error {
	if err := c.redis.Del(ctx, c.redis.WishlistKey(subjectID)); err != nil {
		return fmt.Errorf("delete wishlist cache: %w", err)
	}
	return nil
}
