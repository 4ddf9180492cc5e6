package v1

import (
	"net/http"

	"storefront-client/internal/delivery/http/middleware"
)

type Handlers struct {
	Auth   *AuthHandler
	Cart   *CartHandler
	Health *HealthHandler
}

// RegisterRoutes mounts the storefront API on mux. Cross-cutting middleware
// (logging, CORS, rate limiting, gzip) is applied by the caller.
func RegisterRoutes(mux *http.ServeMux, h Handlers) {
	protected := func(fn http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(fn)
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.AdminMiddleware(fn))
	}

	// Auth
	mux.HandleFunc("POST /auth/register", h.Auth.Register)
	mux.HandleFunc("POST /auth/login", h.Auth.Login)
	mux.Handle("GET /auth/me", protected(h.Auth.Me))

	// Cart
	mux.Handle("GET /auth/cart", protected(h.Cart.GetCart))
	mux.Handle("POST /auth/cart", protected(h.Cart.SaveCart))

	// Admin
	mux.Handle("GET /admin/carts", admin(h.Cart.ListSavedCarts))

	mux.Handle("GET /health", h.Health)
}
