package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storefront-labs/storefront/api/controllers"
	cartcontrollers "github.com/storefront-labs/storefront/api/controllers/cart"
	wishlistcontrollers "github.com/storefront-labs/storefront/api/controllers/wishlist"
	"github.com/storefront-labs/storefront/api/middleware"
	"github.com/storefront-labs/storefront/internal/access"
	"github.com/storefront-labs/storefront/internal/auth"
	"github.com/storefront-labs/storefront/internal/cart"
	"github.com/storefront-labs/storefront/internal/checkout"
	"github.com/storefront-labs/storefront/internal/products"
	"github.com/storefront-labs/storefront/internal/profiles"
	"github.com/storefront-labs/storefront/internal/wishlist"
	"github.com/storefront-labs/storefront/pkg/config"
	"github.com/storefront-labs/storefront/pkg/enums"
	"github.com/storefront-labs/storefront/pkg/logger"
	"github.com/storefront-labs/storefront/pkg/redis"
)

type accessGuard interface {
	Authorize(ctx context.Context, token string, allowed ...enums.Role) access.Outcome
}

// RouterParams bundles everything the HTTP surface is wired to.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *redis.Client
	Guard    accessGuard
	Auth     auth.Service
	Profiles profiles.Service
	Products products.Service
	Carts    cart.Service
	Wishlist wishlist.Service
	Checkout checkout.Service
	Metrics  http.Handler
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	// request id first so access logs and error bodies carry it; the
	// recoverer sits inside logging so a panic is logged as the 500 it became
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.LoginRateLimitPolicy(cfg.AuthRateLimit)
	registerPolicy := middleware.RegisterRateLimitPolicy(cfg.AuthRateLimit)

	// a nil *redis.Client must not become a non-nil interface
	var idem redis.IdempotencyStore
	var rates middleware.RateLimitStore
	if p.Redis != nil {
		idem, rates = p.Redis, p.Redis
	}

	requireAccess := func(roles ...enums.Role) func(http.Handler) http.Handler {
		return middleware.RequireAccess(p.Guard, cfg.Access, logg, roles...)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(p)))
	})
	if p.Metrics != nil {
		r.Handle("/metrics", p.Metrics)
	}
	r.Get("/not-authorized", controllers.NotAuthorized())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.Idempotency(idem, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, rates, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, rates, logg)).Post("/register", controllers.AuthRegister(p.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(p.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/products", controllers.PublicListProducts(p.Products, logg))
		r.Get("/products/{productId}", controllers.PublicGetProduct(p.Products, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(requireAccess(enums.RoleCustomer, enums.RoleMerchant, enums.RoleAdmin)).
			Get("/me", controllers.Me(p.Profiles, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAccess(enums.RoleCustomer))
			r.Use(middleware.Idempotency(idem, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(p.Carts, logg))
				r.Delete("/", cartcontrollers.CartClear(p.Carts, logg))
				r.Post("/items", cartcontrollers.CartAddItem(p.Carts, logg))
				r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(p.Carts, logg))
				r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(p.Carts, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", wishlistcontrollers.WishlistFetch(p.Wishlist, logg))
				r.Post("/resync", wishlistcontrollers.WishlistResync(p.Wishlist, logg))
				r.Get("/{productId}", wishlistcontrollers.WishlistStatus(p.Wishlist, logg))
				r.Post("/{productId}/toggle", wishlistcontrollers.WishlistToggle(p.Wishlist, logg))
			})

			r.Post("/checkout", controllers.Checkout(p.Checkout, logg))
			r.Get("/orders", controllers.ListOrders(p.Checkout, logg))
		})
	})

	r.Route("/api/merchant/v1", func(r chi.Router) {
		r.Use(requireAccess(enums.RoleMerchant, enums.RoleAdmin))
		r.Use(middleware.Idempotency(idem, logg))
		r.Get("/products", controllers.MerchantListProducts(p.Products, logg))
		r.Post("/products", controllers.MerchantCreateProduct(p.Products, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(requireAccess(enums.RoleAdmin))
		r.Use(middleware.Idempotency(idem, logg))
		r.Get("/profiles", controllers.AdminListProfiles(p.Profiles, logg))
		r.Patch("/profiles/{profileId}/role", controllers.AdminUpdateProfileRole(p.Profiles, logg))
	})

	return r
}

func readinessDeps(p RouterParams) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["db"] = p.DB
	}
	if p.Redis != nil {
		deps["redis"] = p.Redis
	}
	return deps
}
