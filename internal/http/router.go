package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/subwatch/subwatch/internal/config"
	"github.com/subwatch/subwatch/internal/http/features/account"
	"github.com/subwatch/subwatch/internal/http/features/analytics"
	"github.com/subwatch/subwatch/internal/http/features/cron"
	"github.com/subwatch/subwatch/internal/http/features/google"
	"github.com/subwatch/subwatch/internal/http/features/session"
	"github.com/subwatch/subwatch/internal/http/features/subscriptions"
	"github.com/subwatch/subwatch/internal/http/features/twofactor"
	"github.com/subwatch/subwatch/internal/http/features/verify"
	"github.com/subwatch/subwatch/internal/http/middleware"
	"github.com/subwatch/subwatch/internal/httputil"
)

// Handlers collects the feature handlers mounted by the router. Nil entries
// are skipped, so optional features (OAuth, email, cron) only register their
// routes when configured.
type Handlers struct {
	Google        *google.Handler
	Verify        *verify.Handler
	Session       *session.Handler
	TwoFactor     *twofactor.Handler
	Subscriptions *subscriptions.Handler
	Analytics     *analytics.Handler
	Account       *account.Handler
	Cron          *cron.Handler
}

// Deps holds everything the router needs.
type Deps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Auth         func(http.Handler) http.Handler
	RateLimiters map[string]func(http.Handler) http.Handler
	Handlers     Handlers
}

// NewRouter builds the HTTP routing tree.
func NewRouter(deps Deps) *chi.Mux {
	cfg := deps.Config
	h := deps.Handlers
	limit := deps.RateLimiters

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Browser-facing OAuth endpoints.
	if h.Google != nil {
		r.Group(func(r chi.Router) {
			r.Use(limit["auth"])
			r.Get("/auth/google", h.Google.Start)
			r.Get("/auth/google/callback", h.Google.Callback)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if h.Verify != nil {
				r.Group(func(r chi.Router) {
					r.Use(limit["verify"])
					r.Get("/verify", h.Verify.Verify)
					r.Get("/verify/status", h.Verify.Status)
					r.Post("/resend-verification", h.Verify.Resend)
				})
			}

			if h.TwoFactor != nil {
				// Challenge verification runs pre-session.
				r.With(limit["auth"]).Post("/2fa/verify", h.TwoFactor.Verify)
			}

			r.Group(func(r chi.Router) {
				r.Use(limit["api"], deps.Auth)
				r.Get("/session", h.Session.Current)
				r.Post("/logout", h.Session.Logout)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(limit["api"], deps.Auth)
			// Session endpoints above stay reachable for unverified users;
			// everything touching account data requires a verified email
			// when verification is enforced.
			if cfg.RequireEmailVerify {
				r.Use(middleware.RequireVerified())
			}

			r.Get("/subscriptions", h.Subscriptions.List)
			r.Post("/subscriptions", h.Subscriptions.Create)
			r.Put("/subscriptions/{id}", h.Subscriptions.Update)
			r.Delete("/subscriptions/{id}", h.Subscriptions.Delete)

			r.Get("/analytics", h.Analytics.Summary)

			r.Get("/me", h.Account.Me)
			r.Patch("/me", h.Account.UpdateMe)
			r.Post("/account/delete", h.Account.Delete)

			if h.TwoFactor != nil {
				r.Get("/2fa/status", h.TwoFactor.Status)
				r.Post("/2fa/setup", h.TwoFactor.Setup)
				r.Post("/2fa/enable", h.TwoFactor.Enable)
				r.Post("/2fa/disable", h.TwoFactor.Disable)
			}
		})

		if h.Cron != nil {
			r.With(limit["cron"]).Get("/cron/notifications", h.Cron.Notifications)
		}
	})

	return r
}
