package cron

import (
	"context"
	"fmt"

	"github.com/storefront-labs/storefront/internal/wishlist"
	"github.com/storefront-labs/storefront/pkg/logger"
)

type wishlistReconciler interface {
	ReconcilePending(ctx context.Context) (wishlist.ReconcileReport, error)
}

type WishlistResyncJobParams struct {
	Logger   *logger.Logger
	Wishlist wishlistReconciler
}

// NewWishlistResyncJob replays wishlist mirror writes that failed at toggle time.
func NewWishlistResyncJob(params WishlistResyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Wishlist == nil {
		return nil, fmt.Errorf("wishlist reconciler required")
	}
	return &wishlistResyncJob{logg: params.Logger, wishlist: params.Wishlist}, nil
}

type wishlistResyncJob struct {
	logg     *logger.Logger
	wishlist wishlistReconciler
}

func (j *wishlistResyncJob) Name() string { return "wishlist-resync" }

func (j *wishlistResyncJob) Run(ctx context.Context) error {
	report, err := j.wishlist.ReconcilePending(ctx)
	if err != nil {
		return fmt.Errorf("wishlist resync: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"subjects": report.Subjects,
		"replayed": report.Replayed,
		"failed":   report.Failed,
	})
	if report.Failed > 0 {
		j.logg.Warn(logCtx, "wishlist resync left writes queued")
		return nil
	}
	j.logg.Info(logCtx, "wishlist resync complete")
	return nil
}
