package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type snapshotStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(subjectID string) string
}

type snapshot struct {
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists cart snapshots in Redis so a cart survives reloads and
// reconnects for the lifetime of the subject's session.
type Store struct {
	redis snapshotStore
	ttl   time.Duration
}

// NewStore builds a snapshot store; ttl <= 0 keeps snapshots without expiry.
func NewStore(redis snapshotStore, ttl time.Duration) *Store {
	return &Store{redis: redis, ttl: ttl}
}

// Load returns the subject's cart, or an empty cart when none is stored.
func (s *Store) Load(ctx context.Context, subjectID string) (*Cart, error) {
	raw, err := s.redis.Get(ctx, s.redis.CartKey(subjectID))
	if errors.Is(err, goredis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return New(snap.Items...), nil
}

// Save writes the cart snapshot; an empty cart deletes the key.
func (s *Store) Save(ctx context.Context, subjectID string, c *Cart) error {
	if c.Len() == 0 {
		return s.Delete(ctx, subjectID)
	}
	payload, err := json.Marshal(snapshot{Items: c.Items(), UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.redis.Set(ctx, s.redis.CartKey(subjectID), string(payload), s.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Delete drops the subject's snapshot.
func (s *Store) Delete(ctx context.Context, subjectID string) error {
	if err := s.redis.Del(ctx, s.redis.CartKey(subjectID)); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
