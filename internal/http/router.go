package http

import (
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/identity"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMaxBodyBytes = 1 << 20 // 1MB

type RouterConfig struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// NewRouter wires the public and admin routes behind the shared middleware
// chain. Admin routes still rely on the service for the role check.
func NewRouter(cfg RouterConfig, orders *OrderHandler, admin *AdminHandler, auth *identity.Authenticator) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLog)
	r.Use(Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(limitBody(cfg.MaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/admin/token", admin.IssueToken)

		r.Group(func(r chi.Router) {
			r.Use(identity.Authenticate(auth))

			r.Post("/orders", orders.PlaceOrder)
			r.Get("/orders/status/{transaction_id}", orders.LookupStatus)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/products", admin.ListProducts)
				r.Post("/products", admin.CreateProduct)
				r.Get("/products/{id}", admin.GetProduct)
				r.Put("/products/{id}", admin.UpdateProduct)
				r.Delete("/products/{id}", admin.DeleteProduct)

				r.Get("/orders", admin.ListOrders)
				r.Patch("/orders/{id}/status", admin.UpdateOrderStatus)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
