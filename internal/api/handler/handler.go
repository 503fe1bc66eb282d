// Package handler provides HTTP handlers for the messaging and alerting
// endpoints. Handlers are thin: validation and semantics live in the
// messaging service, the alert store, and the engine.
package handler

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TechEqualizer/Sportlink-sub001/internal/alerts"
	"github.com/TechEqualizer/Sportlink-sub001/internal/api/respond"
	"github.com/TechEqualizer/Sportlink-sub001/internal/cache"
	"github.com/TechEqualizer/Sportlink-sub001/internal/config"
	"github.com/TechEqualizer/Sportlink-sub001/internal/messaging"
	"github.com/TechEqualizer/Sportlink-sub001/internal/roster"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool     *pgxpool.Pool
	cache    *cache.Cache
	cfg      *config.Config
	messages *messaging.Service
	alerts   alerts.Store
	engine   *alerts.Engine
	roster   roster.Provider
}

// New creates a Handler with shared dependencies. pool may be nil when the
// server runs against the in-memory stores (dev mode); /health/db reports
// accordingly.
func New(
	pool *pgxpool.Pool,
	c *cache.Cache,
	cfg *config.Config,
	messages *messaging.Service,
	alertStore alerts.Store,
	engine *alerts.Engine,
	rosterProvider roster.Provider,
) *Handler {
	return &Handler{
		pool:     pool,
		cache:    c,
		cfg:      cfg,
		messages: messages,
		alerts:   alertStore,
		engine:   engine,
		roster:   rosterProvider,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Sportlink Messaging & Alerts API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"database":  "in-memory",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	var n int
	if err := h.pool.QueryRow(r.Context(), "health_check").Scan(&n); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// parseNow reads an optional ?now= RFC3339 override, falling back to the
// current time. Lets the scheduler and tests pin the evaluation clock.
func parseNow(r *http.Request) time.Time {
	if v := r.URL.Query().Get("now"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
