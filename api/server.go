/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the board frontend

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
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Resource routes
		r.Route("/resources", func(r chi.Router) {
			r.Get("/", h.ListResources)
			r.Post("/", h.CreateResource)
			r.Get("/{id}/cells", h.GetResourceCells)
			r.Get("/{id}/conflicts", h.GetResourceConflicts)
		})

		// Proposal routes (the mutation surface)
		r.Route("/proposals", func(r chi.Router) {
			r.Post("/drop", h.ProposeDrop)
			r.Post("/attach", h.ProposeAttach)
			r.Post("/detach", h.ProposeDetach)
			r.Post("/move", h.ProposeMove)
		})

		// Job routes
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.ListJobs)
			r.Post("/", h.CreateJob)
			r.Get("/{id}/board", h.GetJobBoard)
			r.Get("/{id}/finalizable", h.GetJobFinalizable)
			r.Get("/{id}/staffing", h.GetJobStaffing)
		})

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/utilization", h.GetUtilization)
		})

		// Catalog + admin routes
		r.Get("/catalog", h.GetCatalog)
		r.Route("/admin", func(r chi.Router) {
			r.Post("/catalog", h.ReplaceCatalog)
		})

		// Event audit trail
		r.Get("/events", h.ListEvents)
	})

	return r
}
