/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Only when origins are configured; credentials never go
                 to a "*" wildcard
  /api only:
  5. serialize:  one request at a time against the library
  6. RequireAdmin (admin group): HTTP Basic against the credential store

ROUTE GROUPS:
  /api/books, /api/members/{id}/loans   Public member-facing reads
  /api/*                                Admin (Basic auth)
  /metrics                              Prometheus
  /healthz                              Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/libris/main.go: Server startup
*/
package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions are the knobs NewRouter takes besides the handler.
type RouterOptions struct {
	// AllowedOrigins for CORS. Empty disables cross-origin access; "*"
	// allows any origin without credentials.
	AllowedOrigins []string

	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			// Credentials only go to origins that are named explicitly.
			AllowCredentials: !slices.Contains(opts.AllowedOrigins, "*"),
		}))
	}

	r.Get("/healthz", h.Health)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(h.serialize)

		// Member-facing reads
		r.Get("/books", h.ListBooks)
		r.Get("/books/{id}", h.GetBook)
		r.Get("/members/{id}/loans", h.MemberLoans)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)

			r.Post("/books", h.CreateBook)
			r.Patch("/books/{id}", h.UpdateBook)
			r.Delete("/books/{id}", h.DeleteBook)

			r.Get("/members", h.ListMembers)
			r.Post("/members", h.CreateMember)
			r.Get("/members/{id}", h.GetMember)
			r.Patch("/members/{id}", h.UpdateMember)
			r.Delete("/members/{id}", h.DeleteMember)

			r.Get("/loans", h.ListOpenLoans)
			r.Post("/loans", h.IssueLoan)
			r.Post("/loans/{id}/return", h.ReturnLoan)

			r.Get("/stats", h.GetStats)
			r.Put("/admin/password", h.ChangePassword)
		})
	})

	return r
}
