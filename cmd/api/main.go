package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storefront-labs/storefront/api/routes"
	"github.com/storefront-labs/storefront/internal/access"
	"github.com/storefront-labs/storefront/internal/auth"
	"github.com/storefront-labs/storefront/internal/cart"
	"github.com/storefront-labs/storefront/internal/checkout"
	"github.com/storefront-labs/storefront/internal/products"
	"github.com/storefront-labs/storefront/internal/profiles"
	"github.com/storefront-labs/storefront/internal/wishlist"
	"github.com/storefront-labs/storefront/pkg/auth/session"
	"github.com/storefront-labs/storefront/pkg/config"
	"github.com/storefront-labs/storefront/pkg/db"
	"github.com/storefront-labs/storefront/pkg/instance"
	"github.com/storefront-labs/storefront/pkg/keylock"
	"github.com/storefront-labs/storefront/pkg/logger"
	"github.com/storefront-labs/storefront/pkg/metrics"
	"github.com/storefront-labs/storefront/pkg/migrate"
	"github.com/storefront-labs/storefront/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	params, err := wire(cfg, logg, dbClient, redisClient, registry)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}
	params.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	addr := ":" + cfg.App.Port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(params),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func wire(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (routes.RouterParams, error) {
	conn := dbClient.DB()
	profileRepo := profiles.NewRepository(conn)
	productRepo := products.NewRepository(conn)
	locks := keylock.New()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return routes.RouterParams{}, err
	}
	sessions, err := access.NewTokenSessionProvider(cfg.JWT, sessionManager)
	if err != nil {
		return routes.RouterParams{}, err
	}
	guard, err := access.NewGuard(access.GuardParams{
		Sessions: sessions,
		Profiles: profileRepo,
		Timeout:  cfg.Access.Timeout,
		Metrics:  metrics.NewAccessMetrics(reg),
		Logger:   logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Store:    cart.NewStore(redisClient, cfg.Cart.TTL),
		Products: productRepo,
		Locks:    locks,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	wishlistService, err := wishlist.NewService(wishlist.ServiceParams{
		Cache:    wishlist.NewCache(redisClient, cfg.Wishlist.CacheTTL),
		Mirror:   wishlist.NewRepository(conn),
		Pending:  wishlist.NewPendingQueue(redisClient),
		Products: productRepo,
		Locks:    locks,
		Metrics:  metrics.NewWishlistMetrics(reg),
		Logger:   logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Profiles:       profileRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Teardown:       []auth.SubjectTeardown{cartService, wishlistService},
		Logger:         logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	profileService, err := profiles.NewService(profileRepo)
	if err != nil {
		return routes.RouterParams{}, err
	}
	productService, err := products.NewService(productRepo)
	if err != nil {
		return routes.RouterParams{}, err
	}
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:       dbClient,
		Repo:     checkout.NewRepository(conn),
		Carts:    cartService,
		Products: productRepo,
		Logger:   logg,
	})
	if err != nil {
		return routes.RouterParams{}, err
	}

	return routes.RouterParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		Guard:    guard,
		Auth:     authService,
		Profiles: profileService,
		Products: productService,
		Carts:    cartService,
		Wishlist: wishlistService,
		Checkout: checkoutService,
	}, nil
}
