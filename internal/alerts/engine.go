package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TechEqualizer/Sportlink-sub001/internal/roster"
)

const (
	// defaultEpsilon is the tolerance for the equals comparison. Metric
	// values are decimal-quantized to two places upstream.
	defaultEpsilon = 0.01

	defaultWorkers = 4
)

// Engine evaluates active rules against player metrics and materializes
// performance alerts.
type Engine struct {
	store   Store
	roster  roster.Provider
	stats   roster.StatsProvider
	epsilon float64
	workers int
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEpsilon overrides the equals-comparison tolerance.
func WithEpsilon(e float64) Option {
	return func(eng *Engine) { eng.epsilon = e }
}

// WithWorkers sets the number of concurrent rule workers.
func WithWorkers(n int) Option {
	return func(eng *Engine) { eng.workers = n }
}

// NewEngine creates an evaluation engine.
func NewEngine(store Store, rp roster.Provider, sp roster.StatsProvider, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		roster:  rp,
		stats:   sp,
		epsilon: defaultEpsilon,
		workers: defaultWorkers,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PassResult tracks the outcome of one evaluation pass.
type PassResult struct {
	RulesConsidered int           `json:"rules_considered"`
	RulesEvaluated  int           `json:"rules_evaluated"`
	RulesInvalid    []string      `json:"rules_invalid,omitempty"`
	AlertsCreated   int           `json:"alerts_created"`
	AlertsResolved  int           `json:"alerts_resolved"`
	PlayersSkipped  int           `json:"players_skipped"`
	Errors          []string      `json:"errors,omitempty"`
	Duration        time.Duration `json:"duration_ns"`
}

// Summary returns a human-readable summary.
func (r *PassResult) Summary() string {
	return fmt.Sprintf(
		"rules=%d evaluated=%d invalid=%d created=%d resolved=%d skipped=%d errors=%d dur=%s",
		r.RulesConsidered, r.RulesEvaluated, len(r.RulesInvalid),
		r.AlertsCreated, r.AlertsResolved, r.PlayersSkipped, len(r.Errors),
		r.Duration.Round(time.Millisecond))
}

// Evaluate runs one pass over all active rules.
func (e *Engine) Evaluate(ctx context.Context, now time.Time) PassResult {
	return e.evaluate(ctx, "", now)
}

// EvaluateFrequency runs one pass over active rules in a check_frequency
// bucket. The trigger itself (cron, HTTP hook, CLI) lives outside the
// engine.
func (e *Engine) EvaluateFrequency(ctx context.Context, frequency string, now time.Time) PassResult {
	return e.evaluate(ctx, frequency, now)
}

func (e *Engine) evaluate(ctx context.Context, frequency string, now time.Time) PassResult {
	start := time.Now()
	var result PassResult

	rules, err := e.store.ListRules(ctx, true)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list rules: %v", err))
		result.Duration = time.Since(start)
		return result
	}

	// Filter by frequency bucket and screen out invalid configurations.
	// An invalid rule is reported and excluded, never retried here.
	var runnable []Rule
	for _, r := range rules {
		if frequency != "" && r.CheckFrequency != frequency {
			continue
		}
		result.RulesConsidered++
		if err := r.Validate(); err != nil {
			e.logger.Warn("Rule excluded from evaluation", "rule", r.Name, "error", err)
			result.RulesInvalid = append(result.RulesInvalid, fmt.Sprintf("%s: %v", r.Name, err))
			continue
		}
		runnable = append(runnable, r)
	}

	if len(runnable) == 0 {
		result.Duration = time.Since(start)
		return result
	}

	// Worker pool across rules. Alert lineages are independent, so rules
	// may run concurrently; the store's CreateIfNoOpen keeps overlapping
	// passes from double-creating.
	workers := e.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(runnable) {
		workers = len(runnable)
	}

	ch := make(chan Rule, len(runnable))
	for _, r := range runnable {
		ch <- r
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rule := range ch {
				rr := e.evaluateRule(ctx, rule, now)
				mu.Lock()
				result.RulesEvaluated++
				result.AlertsCreated += rr.created
				result.AlertsResolved += rr.resolved
				result.PlayersSkipped += rr.skipped
				result.Errors = append(result.Errors, rr.errors...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	result.Duration = time.Since(start)
	e.logger.Info("Evaluation pass complete", "frequency", frequency, "summary", result.Summary())
	return result
}

type ruleResult struct {
	created  int
	resolved int
	skipped  int
	errors   []string
}

// evaluateRule runs one rule over its applicable players. Failures are
// isolated per player so one bad lookup never aborts the rest of the pass.
func (e *Engine) evaluateRule(ctx context.Context, rule Rule, now time.Time) ruleResult {
	var rr ruleResult

	players, err := e.roster.Resolve(ctx, rule.AppliesTo, rule.SpecificPlayers)
	if err != nil {
		rr.errors = append(rr.errors, fmt.Sprintf("rule %s: resolve roster: %v", rule.Name, err))
		return rr
	}

	for _, player := range players {
		if err := e.evaluatePlayer(ctx, rule, player, now, &rr); err != nil {
			e.logger.Warn("Player evaluation failed",
				"rule", rule.Name, "player", player.ID, "error", err)
			rr.errors = append(rr.errors, fmt.Sprintf("rule %s player %s: %v", rule.Name, player.ID, err))
		}
	}
	return rr
}

func (e *Engine) evaluatePlayer(ctx context.Context, rule Rule, player roster.Player, now time.Time, rr *ruleResult) error {
	value, ok, err := e.stats.MetricOver(ctx, player.ID, rule.MetricName, rule.TimeWindowDays, now)
	if err != nil {
		return fmt.Errorf("fetch metric: %w", err)
	}
	if !ok {
		// No data for this player and window. Skip, don't alert.
		e.logger.Debug("No metric data, skipping player",
			"rule", rule.Name, "player", player.ID, "metric", rule.MetricName)
		rr.skipped++
		return nil
	}

	lineage := Lineage{PlayerID: player.ID, AlertType: rule.AlertType, Metric: rule.MetricName}

	if !rule.Satisfied(value, e.epsilon) {
		// Condition cleared: self-heal any open alert on this lineage.
		resolved, err := e.store.ResolveOpen(ctx, lineage, now)
		if err != nil {
			return fmt.Errorf("resolve open alert: %w", err)
		}
		if resolved {
			e.logger.Info("Alert resolved",
				"rule", rule.Name, "player", player.ID, "metric", rule.MetricName, "value", value)
			rr.resolved++
		}
		return nil
	}

	alert := &Alert{
		PlayerID:       player.ID,
		AlertType:      rule.AlertType,
		Severity:       rule.Severity,
		Metric:         rule.MetricName,
		CurrentValue:   value,
		ThresholdValue: rule.ThresholdValue,
		Trend:          trendPct(value, rule.ThresholdValue),
		Message:        rule.RenderMessage(player.Name, value),
		ActionRequired: actionRequired(rule.Severity),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := e.store.CreateIfNoOpen(ctx, alert)
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	if created {
		e.logger.Info("Alert created",
			"rule", rule.Name, "player", player.ID, "metric", rule.MetricName,
			"value", value, "severity", rule.Severity)
		rr.created++
	}
	return nil
}

// trendPct is the percentage deviation of value from threshold.
func trendPct(value, threshold float64) float64 {
	if threshold == 0 {
		return 0
	}
	return (value - threshold) / threshold * 100
}
