// Package router sets up all HTTP routes and middleware chains for the
// storefront app. Routes are split into public pages, sign-in pages and
// the signed-in area, each with its own middleware stack.
package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"storefront/internal/handlers"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/web"
)

// MaxBodyBytes caps request bodies. Site forms may carry inline images
// when object storage is not configured.
const MaxBodyBytes = 48 << 20

// Handlers bundles the handler groups served by the router.
type Handlers struct {
	Auth    *handlers.Auth
	Account *handlers.Account
	Sites   *handlers.Sites
	AI      *handlers.AI
	Uploads *handlers.Uploads
	Public  *handlers.Public
}

// Options configures the middleware stack. Nil limiters disable rate
// limiting for their routes.
type Options struct {
	Sessions       middleware.SessionLoader
	SecureCookies  bool
	LoginLimit     *middleware.RateLimiter
	GenerateLimit  *middleware.RateLimiter
	MetricsEnabled bool
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that sets those headers.
	TrustProxy bool
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(opts Options, h Handlers) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(metrics.Middleware)
	r.Use(middleware.SecureHeaders)
	r.Use(chimw.RequestSize(MaxBodyBytes))
	r.Use(middleware.LoadSession(opts.Sessions))

	r.NotFound(h.Public.NotFound)

	// Assets, health and metrics: no CSRF.
	static, _ := fs.Sub(web.StaticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Get("/health", h.Public.Health)
	if opts.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	login := limit(opts.LoginLimit)
	generate := limit(opts.GenerateLimit)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRF(opts.SecureCookies))

		// Public pages; the viewer hides private sites from non-owners.
		r.Get("/", h.Public.Home)
		r.Get("/sites/{id}", h.Sites.View)
		r.Get("/sites/{id}/download", h.Sites.Download)
		r.Get("/preview/{token}", h.Sites.Preview)

		// Sign-in pages, skipped by signed-in users.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RedirectIfAuthenticated("/dashboard"))
			r.Get(middleware.LoginPath, h.Auth.LoginPage)
			r.With(login).Post(middleware.LoginPath, h.Auth.LoginSubmit)
			r.Get("/signup", h.Auth.SignupPage)
			r.With(login).Post("/signup", h.Auth.SignupSubmit)
		})

		// TOTP step; the handlers check the half-authenticated session.
		r.Get(middleware.TwoFAPath, h.Auth.TwoFAPage)
		r.With(login).Post(middleware.TwoFAPath, h.Auth.TwoFASubmit)
		r.Post("/logout", h.Auth.Logout)

		// Signed-in area.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/dashboard", h.Sites.Dashboard)

			r.Get("/sites/new", h.Sites.NewPage)
			r.With(generate).Post("/sites", h.Sites.Create)
			r.Get("/sites/{id}/edit", h.Sites.EditPage)
			r.With(generate).Post("/sites/{id}", h.Sites.Update)
			r.Post("/sites/{id}/delete", h.Sites.Delete)
			r.Post("/sites/{id}/visibility", h.Sites.Visibility)
			r.Post("/sites/{id}/share", h.Sites.Share)

			r.Post("/uploads", h.Uploads.Create)
			r.Post("/uploads/{id}/delete", h.Uploads.Delete)

			r.Route("/ai", func(r chi.Router) {
				r.Use(generate)
				r.Post("/about", h.AI.About)
				r.Post("/improve", h.AI.Improve)
			})

			r.Get("/profile", h.Account.Profile)
			r.Get("/profile/2fa", h.Account.TwoFASetupPage)
			r.Post("/profile/2fa", h.Account.TwoFASetupSubmit)
			r.Post("/profile/2fa/disable", h.Account.TwoFADisable)
		})
	})

	return r
}

// limit returns rl's middleware, or a pass-through when rl is nil.
func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware
}
