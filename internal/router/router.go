package router

import (
	"net/http"

	"raffle-storefront/internal/handler"
	"raffle-storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	AuthHandler     *handler.AuthHandler
	BoardHandler    *handler.BoardHandler
	ActivityHandler *handler.ActivityHandler
	AdminHandler    *handler.AdminHandler
	AuthMiddleware  func(http.Handler) http.Handler
	AllowedOrigins  []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Token", "X-Login-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	r.Handle("/metrics", promhttp.Handler())
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.AuthHandler != nil {
			r.Post("/auth/login", cfg.AuthHandler.Login)
		}

		// Admin endpoints are guarded by the login key, not a session
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(cfg.AdminHandler.RequireKey)
				r.Get("/stats", cfg.AdminHandler.GetStats)
			})
		}

		// AUTHENTICATED routes (use Group to apply auth middleware only to these)
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			if cfg.AuthHandler != nil {
				r.Post("/auth/refresh", cfg.AuthHandler.Refresh)
				r.Post("/auth/logout", cfg.AuthHandler.Logout)
			}

			if cfg.BoardHandler != nil {
				r.Route("/raffles/{raffleID}", func(r chi.Router) {
					r.Get("/board", cfg.BoardHandler.GetBoard)
					r.Post("/numbers/{number}/click", cfg.BoardHandler.Click)

					r.Route("/batch", func(r chi.Router) {
						r.Post("/open", cfg.BoardHandler.OpenBatch)
						r.Post("/toggle/{number}", cfg.BoardHandler.ToggleBatch)
						r.Post("/toggle-all", cfg.BoardHandler.ToggleAllBatch)
						r.Post("/submit", cfg.BoardHandler.SubmitBatch)
						r.Post("/close", cfg.BoardHandler.CloseBatch)
					})
				})
			}

			if cfg.ActivityHandler != nil {
				r.Get("/activity", cfg.ActivityHandler.List)
			}
		})
	})

	return r
}
