package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront/pkg/instance"
)

const defaultLockTTL = 10 * time.Minute

// ErrLockLost is returned by Extend when the lock expired or changed hands.
var ErrLockLost = errors.New("cron lock lost")

// Lock gives one worker at a time the right to run a cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseIfOwner(ctx context.Context, key, owner string) (bool, error)
	ExtendIfOwner(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}

// RedisLock is a SET NX lock whose value names the holder, so release and
// extension never touch a lock another worker took after expiry.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	owner string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := instance.GetID() + ":" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Extend pushes the expiry out by the lock TTL for long cycles.
func (l *RedisLock) Extend(ctx context.Context) error {
	if l.owner == "" {
		return ErrLockLost
	}
	ok, err := l.store.ExtendIfOwner(ctx, l.key, l.owner, l.ttl)
	if err != nil {
		return fmt.Errorf("extend %s: %w", l.key, err)
	}
	if !ok {
		l.owner = ""
		return ErrLockLost
	}
	return nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	if _, err := l.store.ReleaseIfOwner(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.owner = ""
	return nil
}
