package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/feastline/feastline/internal/auth"
	"github.com/feastline/feastline/internal/handler"
	"github.com/feastline/feastline/internal/metrics"
)

// NewRouter assembles the HTTP surface. Browsing and auth endpoints are
// public; the order endpoints require a bearer token.
func NewRouter(authHandler *handler.AuthHandler, menuHandler *handler.MenuHandler, orderHandler *handler.OrderHandler, tokens *auth.Manager) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		authHandler.RegisterRoutes(r)
		menuHandler.RegisterRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(tokens.Middleware)
		orderHandler.RegisterRoutes(r)
	})

	return r
}
