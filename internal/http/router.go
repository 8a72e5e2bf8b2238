package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Sessions       session.Store
	Cookie         CookieConfig
	RequestTimeout time.Duration
	DB             Pinger
}

type Handlers struct {
	Products *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
	Users    *UserHandler
	Admin    *AdminHandler
}

// NewRouter mounts the JSON API behind the session middleware and wraps the
// whole tree in otelhttp.
func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Get("/health", healthHandler(cfg.DB))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.Sessions, cfg.Cookie))

		r.Get("/flash", h.Users.Flash)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/search", h.Products.Search)
			r.Get("/{id}", h.Products.Get)
		})

		r.Get("/cart/count", h.Cart.Count)

		r.Group(func(r chi.Router) {
			r.Use(RequireGuest)
			r.Post("/register", h.Users.Register)
			r.Post("/login", h.Users.Login)
		})
		r.Post("/logout", h.Users.Logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			})

			r.Get("/checkout", h.Checkout.Preview)
			r.Post("/checkout", h.Checkout.PlaceOrder)

			r.Get("/orders", h.Orders.List)
			r.Get("/orders/{order_id}", h.Orders.Get)

			r.Route("/profile", func(r chi.Router) {
				r.Get("/", h.Users.Profile)
				r.Put("/", h.Users.UpdateProfile)
				r.Delete("/", h.Users.DeleteAccount)
				r.Put("/password", h.Users.ChangePassword)
			})
		})

		r.Route("/admin/products", func(r chi.Router) {
			r.Use(RequireRole(string(domain.RoleAdmin)))
			r.Get("/", h.Admin.Dashboard)
			r.Post("/", h.Admin.Create)
			r.Put("/{id}", h.Admin.Update)
			r.Delete("/{id}", h.Admin.Delete)
			r.Put("/{id}/stock", h.Admin.UpdateStock)
		})
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
