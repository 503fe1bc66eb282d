// Package api wires the Chi router, middleware stack, and handlers.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/TechEqualizer/Sportlink-sub001/internal/api/handler"
	"github.com/TechEqualizer/Sportlink-sub001/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(h *handler.Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Messaging
		r.Route("/messages", func(r chi.Router) {
			r.Post("/", h.CreateMessage)
			r.Get("/", h.ListMessages)
			r.Post("/{messageID}/read", h.MarkRead)
			r.Get("/unread/count", h.UnreadCount)
			r.Get("/unread/by-player", h.UnreadByPlayer)
		})

		// Alert rules
		r.Route("/alert-rules", func(r chi.Router) {
			r.Post("/", h.CreateRule)
			r.Get("/", h.ListRules)
			r.Patch("/{ruleID}", h.UpdateRule)
			r.Post("/{ruleID}/deactivate", h.DeactivateRule)
		})

		// Performance alerts
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Post("/evaluate", h.Evaluate)
			r.Post("/{alertID}/acknowledge", h.AcknowledgeAlert)
			r.Post("/{alertID}/resolve", h.ResolveAlert)
		})

		// Roster directory (cached)
		r.Get("/roster", h.GetRoster)
	})

	return r
}
