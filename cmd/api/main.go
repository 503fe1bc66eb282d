// Command api is the Sportlink messaging and alerting API server.
//
// Usage:
//
//	sportlink-api
//	API_PORT=8080 sportlink-api

// @title Sportlink Messaging & Alerts API
// @version 1.0.0
// @description Coach/player messaging with per-recipient read tracking, plus coach-configured performance alert rules evaluated against player metrics.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/TechEqualizer/Sportlink-sub001/internal/alerts"
	"github.com/TechEqualizer/Sportlink-sub001/internal/api"
	"github.com/TechEqualizer/Sportlink-sub001/internal/api/handler"
	"github.com/TechEqualizer/Sportlink-sub001/internal/cache"
	"github.com/TechEqualizer/Sportlink-sub001/internal/config"
	"github.com/TechEqualizer/Sportlink-sub001/internal/db"
	"github.com/TechEqualizer/Sportlink-sub001/internal/maintenance"
	"github.com/TechEqualizer/Sportlink-sub001/internal/messaging"
	"github.com/TechEqualizer/Sportlink-sub001/internal/roster"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Core services
	msgStore := messaging.NewPGStore(pool.Pool)
	msgService := messaging.NewService(msgStore, logger)
	alertStore := alerts.NewPGStore(pool.Pool)
	rosterProvider := roster.NewPGProvider(pool.Pool)
	statsProvider := roster.NewPGStats(pool.Pool)
	engine := alerts.NewEngine(alertStore, rosterProvider, statsProvider, logger,
		alerts.WithEpsilon(cfg.EvalEpsilon),
		alerts.WithWorkers(cfg.EvalWorkers))

	// Background tickers: status sync + in-process evaluation buckets
	maintCfg := maintenance.DefaultConfig(cfg.StatusSyncEvery)
	var maintEngine *alerts.Engine
	if cfg.EvalInProcess {
		maintEngine = engine
	}
	go maintenance.Start(ctx, msgStore, maintEngine, maintCfg, logger)

	// Create router
	h := handler.New(pool.Pool, appCache, cfg, msgService, alertStore, engine, rosterProvider)
	router := api.NewRouter(h, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Sportlink Messaging & Alerts API",
			"addr", addr,
			"environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
