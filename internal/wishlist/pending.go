package wishlist

import (
	"context"
	"fmt"
)

const (
	presentFlag = "1"
	absentFlag  = "0"
)

type pendingStore interface {
	HSet(ctx context.Context, key, field string, value any) error
	HDel(ctx context.Context, key string, fields ...string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HDelIfEquals(ctx context.Context, key, field, value string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	WishlistPendingKey(subjectID string) string
	WishlistPendingIndexKey() string
}

// PendingQueue remembers mirror writes that failed so they can be replayed.
// Only the latest desired presence per (subject, product) is kept.
type PendingQueue struct {
	redis pendingStore
}

func NewPendingQueue(redis pendingStore) *PendingQueue {
	return &PendingQueue{redis: redis}
}

// Record stores the desired presence for a product.
func (q *PendingQueue) Record(ctx context.Context, subjectID, productID string, present bool) error {
	flag := absentFlag
	if present {
		flag = presentFlag
	}
	if err := q.redis.HSet(ctx, q.redis.WishlistPendingKey(subjectID), productID, flag); err != nil {
		return fmt.Errorf("record pending mirror: %w", err)
	}
	if err := q.redis.SAdd(ctx, q.redis.WishlistPendingIndexKey(), subjectID); err != nil {
		return fmt.Errorf("index pending mirror: %w", err)
	}
	return nil
}

// Resolve drops a product's pending write.
func (q *PendingQueue) Resolve(ctx context.Context, subjectID, productID string) error {
	return q.redis.HDel(ctx, q.redis.WishlistPendingKey(subjectID), productID)
}

// Desired returns the queued presence for one product; ok is false once the
// write was resolved or superseded.
func (q *PendingQueue) Desired(ctx context.Context, subjectID, productID string) (present, ok bool, err error) {
	flag, ok, err := q.redis.HGet(ctx, q.redis.WishlistPendingKey(subjectID), productID)
	if err != nil {
		return false, false, fmt.Errorf("read pending mirror: %w", err)
	}
	return flag == presentFlag, ok, nil
}

// ResolveIf drops a product's pending write only while it still asks for
// present. A newer write recorded in the meantime is kept.
func (q *PendingQueue) ResolveIf(ctx context.Context, subjectID, productID string, present bool) error {
	flag := absentFlag
	if present {
		flag = presentFlag
	}
	_, err := q.redis.HDelIfEquals(ctx, q.redis.WishlistPendingKey(subjectID), productID, flag)
	return err
}

// Entries returns productID -> desired presence for a subject.
func (q *PendingQueue) Entries(ctx context.Context, subjectID string) (map[string]bool, error) {
	raw, err := q.redis.HGetAll(ctx, q.redis.WishlistPendingKey(subjectID))
	if err != nil {
		return nil, fmt.Errorf("read pending mirror: %w", err)
	}
	out := make(map[string]bool, len(raw))
	for productID, flag := range raw {
		out[productID] = flag == presentFlag
	}
	return out, nil
}

// Subjects lists subjects with outstanding writes.
func (q *PendingQueue) Subjects(ctx context.Context) ([]string, error) {
	subjects, err := q.redis.SMembers(ctx, q.redis.WishlistPendingIndexKey())
	if err != nil {
		return nil, fmt.Errorf("list pending subjects: %w", err)
	}
	return subjects, nil
}

// Forget removes a subject from the index once its queue is empty.
func (q *PendingQueue) Forget(ctx context.Context, subjectID string) error {
	entries, err := q.Entries(ctx, subjectID)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return q.redis.SRem(ctx, q.redis.WishlistPendingIndexKey(), subjectID)
}
