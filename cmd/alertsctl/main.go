// Command alertsctl is the alert-rule evaluation CLI.
//
// Usage:
//
//	alertsctl evaluate
//	alertsctl evaluate --frequency hourly
//	alertsctl watch
//	alertsctl rules list --active
//	alertsctl rules deactivate --id 3
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/TechEqualizer/Sportlink-sub001/internal/alerts"
	"github.com/TechEqualizer/Sportlink-sub001/internal/config"
	"github.com/TechEqualizer/Sportlink-sub001/internal/db"
	"github.com/TechEqualizer/Sportlink-sub001/internal/roster"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "alertsctl",
		Short: "Sportlink alert rule evaluation CLI",
	}

	root.AddCommand(evaluateCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(rulesCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// evaluate command
// --------------------------------------------------------------------------

func evaluateCmd() *cobra.Command {
	var frequency string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run one evaluation pass over active alert rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *alerts.Engine) error {
				var result alerts.PassResult
				if frequency == "" {
					result = engine.Evaluate(ctx, time.Now().UTC())
				} else {
					result = engine.EvaluateFrequency(ctx, frequency, time.Now().UTC())
				}
				logger.Info("Evaluation finished", "summary", result.Summary())
				for _, invalid := range result.RulesInvalid {
					logger.Warn("Invalid rule excluded", "rule", invalid)
				}
				for _, e := range result.Errors {
					logger.Error("Evaluation error", "error", e)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&frequency, "frequency", "", "Limit to a check_frequency bucket (realtime, hourly, daily, weekly)")
	return cmd
}

// --------------------------------------------------------------------------
// watch command
// --------------------------------------------------------------------------

// watchCmd runs the check-frequency buckets on a cron schedule. This is the
// concrete form of the external scheduler collaborator for deployments
// without an infra cron.
func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run evaluation passes on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *alerts.Engine) error {
				c := cron.New()
				schedules := map[string]string{
					alerts.FreqRealtime: "* * * * *",   // every minute
					alerts.FreqHourly:   "0 * * * *",   // on the hour
					alerts.FreqDaily:    "0 6 * * *",   // 6 AM
					alerts.FreqWeekly:   "0 6 * * MON", // Monday 6 AM
				}
				for freq, expr := range schedules {
					if _, err := c.AddFunc(expr, func() {
						result := engine.EvaluateFrequency(ctx, freq, time.Now().UTC())
						logger.Info("Scheduled pass finished", "frequency", freq, "summary", result.Summary())
					}); err != nil {
						return fmt.Errorf("schedule %s bucket: %w", freq, err)
					}
				}

				c.Start()
				logger.Info("Watch started", "buckets", len(schedules))
				<-ctx.Done()
				stopCtx := c.Stop()
				<-stopCtx.Done()
				logger.Info("Watch stopped")
				return nil
			})
		},
	}
	return cmd
}

// --------------------------------------------------------------------------
// rules command
// --------------------------------------------------------------------------

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and manage alert rules",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesDeactivateCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alert rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store alerts.Store) error {
				rules, err := store.ListRules(ctx, activeOnly)
				if err != nil {
					return err
				}
				for _, r := range rules {
					fmt.Printf("%d\t%s\t%s %s %.2f\t%s\tactive=%v\n",
						r.ID, r.Name, r.MetricName, r.Comparison, r.ThresholdValue,
						r.CheckFrequency, r.IsActive)
				}
				logger.Info("Rules listed", "count", len(rules))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active rules")
	return cmd
}

func rulesDeactivateCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate a rule without deleting it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == 0 {
				return fmt.Errorf("--id is required")
			}
			return withStore(func(ctx context.Context, store alerts.Store) error {
				if err := store.SetRuleActive(ctx, id, false, time.Now().UTC()); err != nil {
					return err
				}
				logger.Info("Rule deactivated", "rule_id", id)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Rule id")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

func withStore(fn func(ctx context.Context, store alerts.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, alerts.NewPGStore(pool.Pool))
}

func withEngine(fn func(ctx context.Context, engine *alerts.Engine) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	engine := alerts.NewEngine(
		alerts.NewPGStore(pool.Pool),
		roster.NewPGProvider(pool.Pool),
		roster.NewPGStats(pool.Pool),
		logger,
		alerts.WithEpsilon(cfg.EvalEpsilon),
		alerts.WithWorkers(cfg.EvalWorkers),
	)
	return fn(ctx, engine)
}
