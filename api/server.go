/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to
  handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the CRM frontend

SECURITY NOTE:
  No authentication middleware. Auth belongs to the surrounding CRM
  application, which fronts this service.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Deal routes
		r.Route("/deals/{id}", func(r chi.Router) {
			r.Post("/close", h.CloseDeal)
			r.Get("/installments", h.ListDealInstallments)
			r.Get("/commissions", h.ListDealCommissions)
		})

		// Installment routes
		r.Route("/installments", func(r chi.Router) {
			r.Post("/{id}/payments", h.RecordPayment)
		})

		// Commission routes
		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", h.ListCommissions)
			r.Post("/{id}/approve", h.ApproveCommission)
			r.Post("/{id}/pay", h.PayCommission)
			r.Post("/{id}/cancel", h.CancelCommission)
		})

		// Metrics + admin routes
		r.Get("/metrics", h.GetMetrics)
		r.Post("/admin/refresh", h.RefreshStatuses)
	})

	return r
}
