package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront/pkg/redis/redistest"
)

func TestRedisLockIsExclusiveAndOwnerScoped(t *testing.T) {
	ctx := context.Background()
	client, srv := redistest.New(t)
	key := client.LockKey("cron")

	first, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, srv.TTL(key))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.True(t, srv.Exists(key), "non-owner must not release")

	require.NoError(t, first.Release(ctx))
	assert.False(t, srv.Exists(key))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	client, _ := redistest.New(t)
	_, err = NewRedisLock(client, "", time.Minute)
	assert.Error(t, err)
}

func TestRedisLockExtendDetectsLoss(t *testing.T) {
	ctx := context.Background()
	client, srv := redistest.New(t)
	key := client.LockKey("cron")

	lock, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, lock.Extend(ctx), ErrLockLost)

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(30 * time.Second)
	require.NoError(t, lock.Extend(ctx))
	assert.Equal(t, time.Minute, srv.TTL(key))

	srv.FastForward(2 * time.Minute)
	assert.ErrorIs(t, lock.Extend(ctx), ErrLockLost)
	assert.NoError(t, lock.Release(ctx))
}
