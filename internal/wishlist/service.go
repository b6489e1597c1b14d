package wishlist

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront/internal/products"
	"github.com/storefront-labs/storefront/pkg/db/models"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
	"github.com/storefront-labs/storefront/pkg/keylock"
	"github.com/storefront-labs/storefront/pkg/logger"
	"github.com/storefront-labs/storefront/pkg/metrics"
)

const (
	mirrorOK       = "ok"
	mirrorQueued   = "queued"
	mirrorReplayed = "replayed"
	mirrorFailed   = "replay_failed"
)

type mirror interface {
	SetPresence(ctx context.Context, profileID, productID uuid.UUID, present bool) error
	ListEntries(ctx context.Context, profileID uuid.UUID) ([]Entry, error)
}

type productLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// ToggleResult reports the membership after a toggle and whether the server
// mirror accepted the write.
type ToggleResult struct {
	ProductID string `json:"product_id"`
	Member    bool   `json:"member"`
	Mirrored  bool   `json:"mirrored"`
}

// ReconcileReport summarizes one replay pass over the pending queue.
type ReconcileReport struct {
	Subjects int
	Replayed int
	Failed   int
}

// Service exposes per-subject wishlist operations.
type Service interface {
	Toggle(ctx context.Context, subjectID, productID string) (ToggleResult, error)
	IsMember(ctx context.Context, subjectID, productID string) (bool, error)
	List(ctx context.Context, subjectID string) ([]Entry, error)
	Resync(ctx context.Context, subjectID string) ([]Entry, error)
	Teardown(ctx context.Context, subjectID string) error
	ReconcilePending(ctx context.Context) (ReconcileReport, error)
}

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	Cache    *Cache
	Mirror   mirror
	Pending  *PendingQueue
	Products productLookup
	Locks    *keylock.Locker
	Metrics  *metrics.WishlistMetrics
	Logger   *logger.Logger
}

type service struct {
	cache    *Cache
	mirror   mirror
	pending  *PendingQueue
	products productLookup
	locks    *keylock.Locker
	metrics  *metrics.WishlistMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds a wishlist service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Cache == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist cache is required")
	}
	if params.Mirror == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist mirror is required")
	}
	if params.Pending == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pending queue is required")
	}
	if params.Products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product lookup is required")
	}
	locks := params.Locks
	if locks == nil {
		locks = keylock.New()
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		cache:    params.Cache,
		mirror:   params.Mirror,
		pending:  params.Pending,
		products: params.Products,
		locks:    locks,
		metrics:  params.Metrics,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Toggle flips membership locally first, then mirrors the change. A failed
// mirror write is queued for replay and the local toggle stands.
func (s *service) Toggle(ctx context.Context, subjectID, productID string) (ToggleResult, error) {
	profileID, err := parseSubject(subjectID)
	if err != nil {
		return ToggleResult{}, err
	}
	product, err := parseProduct(productID)
	if err != nil {
		return ToggleResult{}, err
	}

	unlock := s.locks.Lock(lockKey(subjectID))
	defer unlock()

	set, err := s.load(ctx, subjectID, profileID)
	if err != nil {
		return ToggleResult{}, err
	}

	key := product.String()
	var member bool
	if set.Has(key) {
		set.Remove(key)
	} else {
		entry, err := s.snapshot(ctx, product)
		if err != nil {
			return ToggleResult{}, err
		}
		member = set.Toggle(entry)
	}

	if err := s.cache.Save(ctx, subjectID, set); err != nil {
		return ToggleResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save wishlist")
	}

	result := ToggleResult{ProductID: key, Member: member}
	result.Mirrored = s.mirrorWrite(ctx, subjectID, profileID, product, member)
	return result, nil
}

func (s *service) mirrorWrite(ctx context.Context, subjectID string, profileID, productID uuid.UUID, present bool) bool {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"subject_id": subjectID,
		"product_id": productID.String(),
		"present":    present,
	})
	if err := s.mirror.SetPresence(ctx, profileID, productID, present); err != nil {
		s.logg.WarnErr(logCtx, "wishlist mirror write failed; queued for resync", err)
		s.metrics.IncMirror(mirrorQueued)
		if qErr := s.pending.Record(ctx, subjectID, productID.String(), present); qErr != nil {
			s.logg.Error(logCtx, "failed to queue wishlist mirror write", qErr)
		}
		return false
	}
	s.metrics.IncMirror(mirrorOK)
	// an older queued write for this product is now superseded
	if err := s.pending.Resolve(ctx, subjectID, productID.String()); err != nil {
		s.logg.WarnErr(logCtx, "failed to clear superseded pending mirror write", err)
	}
	return true
}

func (s *service) IsMember(ctx context.Context, subjectID, productID string) (bool, error) {
	profileID, err := parseSubject(subjectID)
	if err != nil {
		return false, err
	}
	set, err := s.load(ctx, subjectID, profileID)
	if err != nil {
		return false, err
	}
	return set.Has(strings.TrimSpace(productID)), nil
}

func (s *service) List(ctx context.Context, subjectID string) ([]Entry, error) {
	profileID, err := parseSubject(subjectID)
	if err != nil {
		return nil, err
	}
	set, err := s.load(ctx, subjectID, profileID)
	if err != nil {
		return nil, err
	}
	return set.Items(), nil
}

// Resync discards the local cache and rebuilds it from the server mirror.
func (s *service) Resync(ctx context.Context, subjectID string) ([]Entry, error) {
	profileID, err := parseSubject(subjectID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(lockKey(subjectID))
	defer unlock()

	set, err := s.rebuild(ctx, subjectID, profileID)
	if err != nil {
		return nil, err
	}
	return set.Items(), nil
}

// Teardown drops the local cache (sign-out). The server mirror is kept.
func (s *service) Teardown(ctx context.Context, subjectID string) error {
	if strings.TrimSpace(subjectID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "subject is required")
	}
	unlock := s.locks.Lock(lockKey(subjectID))
	defer unlock()
	if err := s.cache.Delete(ctx, subjectID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete wishlist cache")
	}
	return nil
}

// ReconcilePending replays every queued mirror write. Entries that fail again
// stay queued for the next pass.
func (s *service) ReconcilePending(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	subjects, err := s.pending.Subjects(ctx)
	if err != nil {
		return report, err
	}
	for _, subjectID := range subjects {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Subjects++
		replayed, failed, err := s.reconcileSubject(ctx, subjectID)
		report.Replayed += replayed
		report.Failed += failed
		if err != nil {
			s.logg.WarnErr(s.logg.WithSubject(ctx, subjectID), "wishlist reconcile failed for subject", err)
		}
	}
	return report, nil
}

func (s *service) reconcileSubject(ctx context.Context, subjectID string) (replayed, failed int, err error) {
	entries, err := s.pending.Entries(ctx, subjectID)
	if err != nil {
		return 0, 0, err
	}
	profileID, parseErr := uuid.Parse(subjectID)
	for productID := range entries {
		product, productErr := uuid.Parse(productID)
		if parseErr != nil || productErr != nil {
			// unreplayable; drop it rather than retry forever
			if err := s.pending.Resolve(ctx, subjectID, productID); err != nil {
				return replayed, failed, err
			}
			continue
		}
		// the API may have mirrored a newer toggle since the snapshot was taken
		present, ok, err := s.pending.Desired(ctx, subjectID, productID)
		if err != nil {
			return replayed, failed, err
		}
		if !ok {
			continue
		}
		if err := s.mirror.SetPresence(ctx, profileID, product, present); err != nil {
			failed++
			s.metrics.IncMirror(mirrorFailed)
			continue
		}
		replayed++
		s.metrics.IncMirror(mirrorReplayed)
		if err := s.pending.ResolveIf(ctx, subjectID, productID, present); err != nil {
			return replayed, failed, err
		}
	}
	return replayed, failed, s.pending.Forget(ctx, subjectID)
}

// load returns the cached set or rebuilds it from the server on a miss.
func (s *service) load(ctx context.Context, subjectID string, profileID uuid.UUID) (*Set, error) {
	set, ok, err := s.cache.Load(ctx, subjectID)
	if err != nil {
		s.logg.WarnErr(s.logg.WithSubject(ctx, subjectID), "wishlist cache unreadable; rebuilding", err)
	}
	if ok {
		return set, nil
	}
	return s.rebuild(ctx, subjectID, profileID)
}

// rebuild reads the server mirror and overlays writes that have not reached it yet.
func (s *service) rebuild(ctx context.Context, subjectID string, profileID uuid.UUID) (*Set, error) {
	entries, err := s.mirror.ListEntries(ctx, profileID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	set := NewSet(entries...)

	pending, err := s.pending.Entries(ctx, subjectID)
	if err != nil {
		s.logg.WarnErr(s.logg.WithSubject(ctx, subjectID), "pending wishlist writes unreadable", err)
	}
	for productID, present := range pending {
		if !present {
			set.Remove(productID)
			continue
		}
		if set.Has(productID) {
			continue
		}
		id, err := uuid.Parse(productID)
		if err != nil {
			continue
		}
		if entry, err := s.snapshot(ctx, id); err == nil {
			set.Add(entry)
		}
	}

	if err := s.cache.Save(ctx, subjectID, set); err != nil {
		s.logg.WarnErr(s.logg.WithSubject(ctx, subjectID), "failed to cache rebuilt wishlist", err)
	}
	return set, nil
}

func (s *service) snapshot(ctx context.Context, productID uuid.UUID) (Entry, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return Entry{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return Entry{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return Entry{
		ProductID: product.ID.String(),
		Name:      product.Name,
		UnitPrice: product.UnitPrice,
		ImageRef:  product.ImageRef,
		AddedAt:   s.now().UTC(),
	}, nil
}

func parseSubject(subjectID string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(subjectID))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "subject is required")
	}
	return id, nil
}

func parseProduct(productID string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(productID))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id")
	}
	return id, nil
}

func lockKey(subjectID string) string {
	return "wishlist:" + subjectID
}
