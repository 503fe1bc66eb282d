// Package maintenance runs periodic background tasks as Go tickers inside
// the API server: refreshing the denormalized message status column and,
// when no external scheduler is wired, driving alert evaluation passes per
// check_frequency bucket.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/TechEqualizer/Sportlink-sub001/internal/alerts"
	"github.com/TechEqualizer/Sportlink-sub001/internal/messaging"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	StatusSyncInterval time.Duration // refresh Message.Status from read receipts
	EvalRealtime       time.Duration // realtime check_frequency bucket
	EvalHourly         time.Duration
	EvalDaily          time.Duration
	EvalWeekly         time.Duration
}

// DefaultConfig returns production defaults. The realtime bucket runs every
// minute; hourly/daily/weekly run on their nominal periods.
func DefaultConfig(statusSync time.Duration) Config {
	return Config{
		StatusSyncInterval: statusSync,
		EvalRealtime:       1 * time.Minute,
		EvalHourly:         1 * time.Hour,
		EvalDaily:          24 * time.Hour,
		EvalWeekly:         7 * 24 * time.Hour,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`. engine may be nil when alert
// evaluation is driven externally.
func Start(ctx context.Context, store messaging.Store, engine *alerts.Engine, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"status_sync", cfg.StatusSyncInterval,
		"eval_realtime", cfg.EvalRealtime)

	var tickers []*time.Ticker
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.StatusSyncInterval > 0 {
		t := time.NewTicker(cfg.StatusSyncInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { syncStatus(ctx, store, logger) })
	}

	if engine != nil {
		buckets := map[string]time.Duration{
			alerts.FreqRealtime: cfg.EvalRealtime,
			alerts.FreqHourly:   cfg.EvalHourly,
			alerts.FreqDaily:    cfg.EvalDaily,
			alerts.FreqWeekly:   cfg.EvalWeekly,
		}
		for freq, interval := range buckets {
			if interval <= 0 {
				continue
			}
			t := time.NewTicker(interval)
			tickers = append(tickers, t)
			go runLoop(ctx, t.C, func() {
				engine.EvaluateFrequency(ctx, freq, time.Now().UTC())
			})
		}
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// syncStatus refreshes the denormalized status column from read receipts.
// Status is a display hint only; the read tracker stays authoritative.
func syncStatus(ctx context.Context, store messaging.Store, logger *slog.Logger) {
	updated, err := store.SyncStatus(ctx, time.Now().UTC())
	if err != nil {
		logger.Warn("Status sync failed", "error", err)
		return
	}
	if updated > 0 {
		logger.Info("Status sync", "messages_updated", updated)
	}
}
