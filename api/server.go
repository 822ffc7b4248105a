/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the browser frontend
  5. auth:       Bearer-token identity resolution on the /api tree

ROUTE GROUPS:
  /api/me/*           Caller-scoped reads and profile save
  /api/tasks/*        Catalog and completions
  /api/withdrawals    Withdrawal log
  /api/users/*        Cross-identity profile reads
  /api/admin/*        Role assignment

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/identity.go: The identity middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/caffeinepub/banana-earn/auth"
)

// NewRouter creates a new router with all routes configured. jwtSecret
// feeds the identity middleware; corsOrigins lists the allowed frontends.
func NewRouter(h *Handler, jwtSecret string, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes (all authenticated)
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(jwtSecret))

		// Caller-scoped routes
		r.Route("/me", func(r chi.Router) {
			r.Get("/role", h.GetCallerRole)
			r.Get("/admin", h.GetCallerAdmin)
			r.Get("/profile", h.GetCallerProfile)
			r.Put("/profile", h.SaveCallerProfile)
			r.Get("/balance", h.GetCallerBalance)
		})

		// Task routes
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Post("/seed", h.SeedTasks)
			r.Get("/{id}", h.GetTask)
			r.Post("/{id}/complete", h.CompleteTask)
		})

		// Withdrawal routes
		r.Route("/withdrawals", func(r chi.Router) {
			r.Get("/", h.ListWithdrawals)
			r.Post("/", h.RequestWithdrawal)
		})

		// Cross-identity profile reads
		r.Get("/users/{id}/profile", h.GetUserProfile)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/roles", h.AssignRole)
		})
	})

	return r
}
