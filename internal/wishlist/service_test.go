package wishlist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront/internal/products"
	"github.com/storefront-labs/storefront/pkg/db/dbtest"
	"github.com/storefront-labs/storefront/pkg/db/models"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/redis"
	"github.com/storefront-labs/storefront/pkg/redis/redistest"
)

// flakyMirror fails writes while down is set.
type flakyMirror struct {
	*Repository
	mu   sync.Mutex
	down bool
}

func (f *flakyMirror) setDown(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = v
}

func (f *flakyMirror) SetPresence(ctx context.Context, profileID, productID uuid.UUID, present bool) error {
	f.mu.Lock()
	down := f.down
	f.mu.Unlock()
	if down {
		return errors.New("mirror unavailable")
	}
	return f.Repository.SetPresence(ctx, profileID, productID, present)
}

type fixture struct {
	svc      Service
	repo     *Repository
	mirror   *flakyMirror
	redis    *redis.Client
	srv      *miniredis.Miniredis
	products *products.Repository
	subject  string
	profile  uuid.UUID
}

// snapshotHook runs onSnapshot once, right after the pending queue is read
// in full.
type snapshotHook struct {
	*redis.Client
	onSnapshot func()
}

func (h *snapshotHook) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	out, err := h.Client.HGetAll(ctx, key)
	if fn := h.onSnapshot; fn != nil {
		h.onSnapshot = nil
		fn()
	}
	return out, err
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test wrap the redis client the pending queue uses.
func newFixtureWith(t *testing.T, wrap func(*redis.Client) pendingStore) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client, srv := redistest.New(t)
	repo := NewRepository(conn)
	mirror := &flakyMirror{Repository: repo}
	productRepo := products.NewRepository(conn)

	var queueStore pendingStore = client
	if wrap != nil {
		queueStore = wrap(client)
	}
	svc, err := NewService(ServiceParams{
		Cache:    NewCache(client, time.Hour),
		Mirror:   mirror,
		Pending:  NewPendingQueue(queueStore),
		Products: productRepo,
	})
	require.NoError(t, err)

	profile := uuid.New()
	return &fixture{svc: svc, repo: repo, mirror: mirror, redis: client, srv: srv, products: productRepo, subject: profile.String(), profile: profile}
}

func (f *fixture) product(t *testing.T, name string) uuid.UUID {
	t.Helper()
	p, err := f.products.Create(context.Background(), &models.Product{MerchantID: uuid.New(), Name: name, UnitPrice: decimal.NewFromInt(5), ImageRef: name + ".png"})
	require.NoError(t, err)
	return p.ID
}

// mirrored reports whether the (profile, product) row exists.
func (f *fixture) mirrored(t *testing.T, productID uuid.UUID) bool {
	t.Helper()
	var count int64
	require.NoError(t, f.repo.db.
		Model(&models.WishlistItem{}).
		Where("profile_id = ? AND product_id = ?", f.profile, productID).
		Count(&count).Error)
	return count > 0
}

func TestToggleAddsAndMirrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "lamp")

	res, err := f.svc.Toggle(ctx, f.subject, p.String())
	require.NoError(t, err)
	assert.True(t, res.Member)
	assert.True(t, res.Mirrored)

	member, err := f.svc.IsMember(ctx, f.subject, p.String())
	require.NoError(t, err)
	assert.True(t, member)

	assert.True(t, f.mirrored(t, p))

	list, err := f.svc.List(ctx, f.subject)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "lamp", list[0].Name)
}

func TestToggleTwiceRestoresMembershipAndMirror(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "lamp")

	_, err := f.svc.Toggle(ctx, f.subject, p.String())
	require.NoError(t, err)
	res, err := f.svc.Toggle(ctx, f.subject, p.String())
	require.NoError(t, err)
	assert.False(t, res.Member)

	member, err := f.svc.IsMember(ctx, f.subject, p.String())
	require.NoError(t, err)
	assert.False(t, member)

	assert.False(t, f.mirrored(t, p))
}

func TestToggleValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Toggle(ctx, f.subject, "not-a-uuid")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Toggle(ctx, "anonymous", uuid.NewString())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = f.svc.Toggle(ctx, f.subject, uuid.NewString())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMirrorFailureKeepsLocalStateAndQueues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "lamp")
	f.mirror.setDown(true)

	res, err := f.svc.Toggle(ctx, f.subject, p.String())
	require.NoError(t, err)
	assert.True(t, res.Member)
	assert.False(t, res.Mirrored)

	member, err := f.svc.IsMember(ctx, f.subject, p.String())
	require.NoError(t, err)
	assert.True(t, member, "optimistic toggle must not be rolled back")

	assert.Equal(t, "1", f.srv.HGet(f.redis.WishlistPendingKey(f.subject), p.String()))
	isMember, err := f.srv.SIsMember(f.redis.WishlistPendingIndexKey(), f.subject)
	require.NoError(t, err)
	assert.True(t, isMember)

	assert.False(t, f.mirrored(t, p))
}

func TestReconcilePendingReplaysQueuedWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "lamp")

	f.mirror.setDown(true)
	_, err := f.svc.Toggle(ctx, f.subject, p.String())
	require.NoError(t, err)

	report, err := f.svc.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Subjects: 1, Failed: 1}, report)

	f.mirror.setDown(false)
	report, err = f.svc.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Subjects: 1, Replayed: 1}, report)

	assert.True(t, f.mirrored(t, p))
	assert.False(t, f.srv.Exists(f.redis.WishlistPendingKey(f.subject)))

	report, err = f.svc.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Subjects)
}

func TestSuccessfulToggleSupersedesQueuedWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "lamp")

	f.mirror.setDown(true)
	_, err := f.svc.Toggle(ctx, f.subject, p.String())
	require.NoError(t, err)

	f.mirror.setDown(false)
	res, err := f.svc.Toggle(ctx, f.subject, p.String())
	require.NoError(t, err)
	assert.False(t, res.Member)
	assert.True(t, res.Mirrored)
	assert.Equal(t, "", f.srv.HGet(f.redis.WishlistPendingKey(f.subject), p.String()))
}

func TestReconcileSkipsWriteSupersededAfterSnapshot(t *testing.T) {
	ctx := context.Background()
	var hook *snapshotHook
	f := newFixtureWith(t, func(c *redis.Client) pendingStore {
		hook = &snapshotHook{Client: c}
		return hook
	})
	p := f.product(t, "lamp")

	f.mirror.setDown(true)
	res, err := f.svc.Toggle(ctx, f.subject, p.String())
	require.NoError(t, err)
	require.True(t, res.Member)
	f.mirror.setDown(false)

	// the user toggles off on another request while the replay is in flight
	hook.onSnapshot = func() {
		res, err := f.svc.Toggle(ctx, f.subject, p.String())
		require.NoError(t, err)
		require.False(t, res.Member)
		require.True(t, res.Mirrored)
	}

	report, err := f.svc.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Subjects: 1}, report)
	assert.False(t, f.mirrored(t, p), "stale queued write must not be replayed")
	assert.False(t, f.srv.Exists(f.redis.WishlistPendingKey(f.subject)))
}

func TestReconcileKeepsWriteRecordedDuringReplay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "lamp")

	f.mirror.setDown(true)
	_, err := f.svc.Toggle(ctx, f.subject, p.String())
	require.NoError(t, err)
	f.mirror.setDown(false)

	queue := NewPendingQueue(f.redis)
	present, ok, err := queue.Desired(ctx, f.subject, p.String())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, present)

	// a newer failed toggle lands before the replay resolves the old one
	require.NoError(t, queue.Record(ctx, f.subject, p.String(), false))
	require.NoError(t, queue.ResolveIf(ctx, f.subject, p.String(), true))

	present, ok, err = queue.Desired(ctx, f.subject, p.String())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, present)
}

func TestCacheMissRebuildsFromServer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.product(t, "a"), f.product(t, "b")

	// another device wrote directly to the mirror
	require.NoError(t, f.repo.SetPresence(ctx, f.profile, a, true))
	require.NoError(t, f.repo.SetPresence(ctx, f.profile, b, true))

	list, err := f.svc.List(ctx, f.subject)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.True(t, f.srv.Exists(f.redis.WishlistKey(f.subject)))
}

func TestRebuildOverlaysPendingWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a, b := f.product(t, "a"), f.product(t, "b")
	require.NoError(t, f.repo.SetPresence(ctx, f.profile, a, true))

	f.mirror.setDown(true)
	_, err := f.svc.Toggle(ctx, f.subject, a.String()) // local remove, mirror fails
	require.NoError(t, err)
	_, err = f.svc.Toggle(ctx, f.subject, b.String()) // local add, mirror fails
	require.NoError(t, err)

	list, err := f.svc.Resync(ctx, f.subject)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.String(), list[0].ProductID)
}

func TestTeardownDropsCacheButKeepsMirror(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.product(t, "lamp")

	_, err := f.svc.Toggle(ctx, f.subject, p.String())
	require.NoError(t, err)
	require.NoError(t, f.svc.Teardown(ctx, f.subject))
	assert.False(t, f.srv.Exists(f.redis.WishlistKey(f.subject)))

	member, err := f.svc.IsMember(ctx, f.subject, p.String())
	require.NoError(t, err)
	assert.True(t, member)
}
