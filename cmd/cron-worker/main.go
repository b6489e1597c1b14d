package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storefront-labs/storefront/internal/cron"
	"github.com/storefront-labs/storefront/internal/products"
	"github.com/storefront-labs/storefront/internal/wishlist"
	"github.com/storefront-labs/storefront/pkg/config"
	"github.com/storefront-labs/storefront/pkg/db"
	"github.com/storefront-labs/storefront/pkg/instance"
	"github.com/storefront-labs/storefront/pkg/logger"
	"github.com/storefront-labs/storefront/pkg/metrics"
	"github.com/storefront-labs/storefront/pkg/migrate"
	"github.com/storefront-labs/storefront/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reg := prometheus.NewRegistry()

	wishlistService, err := wishlist.NewService(wishlist.ServiceParams{
		Cache:    wishlist.NewCache(redisClient, cfg.Wishlist.CacheTTL),
		Mirror:   wishlist.NewRepository(dbClient.DB()),
		Pending:  wishlist.NewPendingQueue(redisClient),
		Products: products.NewRepository(dbClient.DB()),
		Metrics:  metrics.NewWishlistMetrics(reg),
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wishlist service", err)
		os.Exit(1)
	}

	resyncJob, err := cron.NewWishlistResyncJob(cron.WishlistResyncJobParams{
		Logger:   logg,
		Wishlist: wishlistService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wishlist resync job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	if err := registry.Register(resyncJob); err != nil {
		logg.Error(context.Background(), "failed to register cron job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronMetrics(reg),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})

	if *once {
		report, err := service.RunOnce(ctx)
		if err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		if failed := report.Failed(); len(failed) > 0 {
			logg.Error(logg.WithField(ctx, "failed_jobs", failed), "cron cycle finished with failures", nil)
			os.Exit(1)
		}
		logg.Info(logg.WithField(ctx, "skipped", report.Skipped), "cron cycle complete")
		return
	}

	metricsServer := &http.Server{
		Addr:              cfg.Cron.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
