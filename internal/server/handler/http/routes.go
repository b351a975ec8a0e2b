// Package http provides HTTP routing and handlers for the DieCompare API.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/atinyakov/diecompare/internal/middleware"
)

// Handlers groups the handlers mounted by NewRouter.
type Handlers struct {
	Sessions    *SessionHandler
	Dies        *DieHandler
	Compare     *CompareHandler
	Credentials *CredentialHandler
}

// RouterOptions tunes the cross-cutting middleware.
type RouterOptions struct {
	// AllowedOrigins enables CORS for browser clients when non-empty.
	AllowedOrigins []string
	// LoginRateLimit caps login and unlock attempts per client IP per
	// minute. Zero disables the limit.
	LoginRateLimit int
}

// NewRouter constructs the HTTP handler serving the API under /api.
//
// Routes:
//
//	GET    /api/health
//	POST   /api/sessions                 → Sessions.Create
//	POST   /api/session/login            → Sessions.Login (rate limited)
//	POST   /api/session/unlock           → Sessions.Unlock (rate limited)
//	POST   /api/session/lock             → Sessions.Lock
//	DELETE /api/session                  → Sessions.Logout
//	GET    /api/dies                     → Dies.List
//	GET    /api/dies/{id}                → Dies.Get
//	POST   /api/dies                     → Dies.Create (signed in)
//	DELETE /api/dies/{id}                → Dies.Delete (signed in)
//	GET    /api/stats                    → Dies.Stats
//	GET    /api/export                   → Dies.Export
//	GET    /api/compare                  → Compare.Show
//	POST   /api/compare/toggle/{id}      → Compare.Toggle
//	DELETE /api/compare                  → Compare.Clear
//	GET    /api/credentials              → Credentials.List (signed in)
//	POST   /api/credentials              → Credentials.Create (signed in)
//	DELETE /api/credentials/{username}   → Credentials.Delete (signed in)
//
// Every route except health and session creation needs a bearer token.
func NewRouter(h Handlers, sessions middleware.SessionLookup, opts RouterOptions, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	throttle := func(next http.Handler) http.Handler { return next }
	if opts.LoginRateLimit > 0 {
		throttle = httprate.LimitByIP(opts.LoginRateLimit, time.Minute)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json"))
		r.Use(middleware.SessionAuth(sessions, "/api/health", "/api/sessions"))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Post("/sessions", h.Sessions.Create)

		r.Route("/session", func(r chi.Router) {
			r.With(throttle).Post("/login", h.Sessions.Login)
			r.With(throttle).Post("/unlock", h.Sessions.Unlock)
			r.Post("/lock", h.Sessions.Lock)
			r.Delete("/", h.Sessions.Logout)
		})

		r.Get("/dies", h.Dies.List)
		r.Get("/dies/{id}", h.Dies.Get)
		r.Get("/stats", h.Dies.Stats)
		r.Get("/export", h.Dies.Export)

		r.Get("/compare", h.Compare.Show)
		r.Post("/compare/toggle/{id}", h.Compare.Toggle)
		r.Delete("/compare", h.Compare.Clear)

		// Signed-in accounts only
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Post("/dies", h.Dies.Create)
			r.Delete("/dies/{id}", h.Dies.Delete)
			r.Get("/credentials", h.Credentials.List)
			r.Post("/credentials", h.Credentials.Create)
			r.Delete("/credentials/{username}", h.Credentials.Delete)
		})
	})

	return r
}
