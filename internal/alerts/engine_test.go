package alerts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/TechEqualizer/Sportlink-sub001/internal/roster"
)

// fakeRoster resolves every segment to a fixed player list, or the named
// subset for specific.
type fakeRoster struct {
	players []roster.Player
	err     error
}

func (f *fakeRoster) Resolve(ctx context.Context, segment string, specific []string) ([]roster.Player, error) {
	if f.err != nil {
		return nil, f.err
	}
	if segment != AppliesSpecific {
		return f.players, nil
	}
	var out []roster.Player
	for _, p := range f.players {
		for _, id := range specific {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

// fakeStats serves metric values from a map keyed player -> metric.
// Missing entries report ok=false (no data).
type fakeStats struct {
	values map[string]map[string]float64
	errFor string
}

func (f *fakeStats) MetricOver(ctx context.Context, playerID, metric string, windowDays int, now time.Time) (float64, bool, error) {
	if playerID == f.errFor {
		return 0, false, fmt.Errorf("stats backend down")
	}
	v, ok := f.values[playerID][metric]
	return v, ok, nil
}

func (f *fakeStats) set(playerID, metric string, value float64) {
	if f.values == nil {
		f.values = make(map[string]map[string]float64)
	}
	if f.values[playerID] == nil {
		f.values[playerID] = make(map[string]float64)
	}
	f.values[playerID][metric] = value
}

func testEngine(t *testing.T, store Store, players []roster.Player, stats *fakeStats) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(store, &fakeRoster{players: players}, stats, logger)
}

func mustInsertRule(t *testing.T, store Store, r Rule) Rule {
	t.Helper()
	r.Normalize()
	r.IsActive = true
	if err := r.Validate(); err != nil {
		t.Fatalf("rule invalid: %v", err)
	}
	if err := store.InsertRule(context.Background(), &r); err != nil {
		t.Fatalf("insert rule: %v", err)
	}
	return r
}

func TestEvaluateCreatesAlert(t *testing.T) {
	store := NewMemStore()
	stats := &fakeStats{}
	stats.set("p1", "ppg", 8)
	eng := testEngine(t, store, []roster.Player{{ID: "p1", Name: "Jordan Ellis", Active: true}}, stats)

	mustInsertRule(t, store, Rule{
		Name: "low scoring", MetricName: "ppg", Comparison: CompareBelow,
		ThresholdValue: 10, AlertType: TypeBenchmarkLow,
		Severity: SeverityAlert, CheckFrequency: FreqDaily, AppliesTo: AppliesAll,
		AlertMessage: "{player} down to {value} {metric}",
	})

	now := time.Now().UTC()
	result := eng.Evaluate(context.Background(), now)
	if result.AlertsCreated != 1 {
		t.Fatalf("AlertsCreated = %d, want 1; errors: %v", result.AlertsCreated, result.Errors)
	}

	open, err := store.ListAlerts(context.Background(), Filter{Unresolved: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(open))
	}
	a := open[0]
	if a.PlayerID != "p1" || a.AlertType != TypeBenchmarkLow || a.Metric != "ppg" {
		t.Errorf("alert lineage = %+v", a.Lineage())
	}
	if a.Acknowledged {
		t.Error("new alert should not be acknowledged")
	}
	if !a.ActionRequired {
		t.Error("severity=alert should require action")
	}
	if a.CurrentValue != 8 || a.ThresholdValue != 10 {
		t.Errorf("values = %v/%v, want 8/10", a.CurrentValue, a.ThresholdValue)
	}
	if a.Message != "Jordan Ellis down to 8 ppg" {
		t.Errorf("Message = %q", a.Message)
	}
}

func TestEvaluateDeduplicates(t *testing.T) {
	store := NewMemStore()
	stats := &fakeStats{}
	stats.set("p1", "ppg", 8)
	eng := testEngine(t, store, []roster.Player{{ID: "p1", Name: "Jordan Ellis", Active: true}}, stats)

	mustInsertRule(t, store, Rule{
		Name: "low scoring", MetricName: "ppg", Comparison: CompareBelow,
		ThresholdValue: 10, AlertType: TypeBenchmarkLow,
		CheckFrequency: FreqDaily, AppliesTo: AppliesAll,
	})

	ctx := context.Background()
	now := time.Now().UTC()
	eng.Evaluate(ctx, now)

	// Unchanged data: a second pass must not open a second alert.
	result := eng.Evaluate(ctx, now.Add(time.Hour))
	if result.AlertsCreated != 0 {
		t.Fatalf("second pass created %d alerts, want 0", result.AlertsCreated)
	}
	all, _ := store.ListAlerts(ctx, Filter{})
	if len(all) != 1 {
		t.Fatalf("total alerts = %d, want 1", len(all))
	}
}

func TestEvaluateResolvesWhenConditionClears(t *testing.T) {
	store := NewMemStore()
	stats := &fakeStats{}
	stats.set("p1", "ppg", 8)
	eng := testEngine(t, store, []roster.Player{{ID: "p1", Name: "Jordan Ellis", Active: true}}, stats)

	mustInsertRule(t, store, Rule{
		Name: "low scoring", MetricName: "ppg", Comparison: CompareBelow,
		ThresholdValue: 10, AlertType: TypeBenchmarkLow,
		CheckFrequency: FreqDaily, AppliesTo: AppliesAll,
	})

	ctx := context.Background()
	now := time.Now().UTC()
	eng.Evaluate(ctx, now)

	// Scoring recovers; the open alert self-heals.
	stats.set("p1", "ppg", 12)
	later := now.Add(24 * time.Hour)
	result := eng.Evaluate(ctx, later)
	if result.AlertsResolved != 1 {
		t.Fatalf("AlertsResolved = %d, want 1", result.AlertsResolved)
	}

	all, _ := store.ListAlerts(ctx, Filter{})
	if len(all) != 1 {
		t.Fatalf("total alerts = %d, want 1", len(all))
	}
	if all[0].ResolvedAt == nil || !all[0].ResolvedAt.Equal(later) {
		t.Errorf("ResolvedAt = %v, want %v", all[0].ResolvedAt, later)
	}

	// Condition fires again afterwards: a new alert opens on the lineage.
	stats.set("p1", "ppg", 7)
	result = eng.Evaluate(ctx, later.Add(24*time.Hour))
	if result.AlertsCreated != 1 {
		t.Fatalf("new lineage alert not created after resolution")
	}
}

func TestEvaluateSkipsMissingMetric(t *testing.T) {
	store := NewMemStore()
	stats := &fakeStats{} // no data at all
	eng := testEngine(t, store, []roster.Player{{ID: "p1", Name: "Jordan Ellis", Active: true}}, stats)

	mustInsertRule(t, store, Rule{
		Name: "low scoring", MetricName: "ppg", Comparison: CompareBelow,
		ThresholdValue: 10, AlertType: TypeBenchmarkLow,
		CheckFrequency: FreqDaily, AppliesTo: AppliesAll,
	})

	result := eng.Evaluate(context.Background(), time.Now().UTC())
	if result.PlayersSkipped != 1 {
		t.Errorf("PlayersSkipped = %d, want 1", result.PlayersSkipped)
	}
	if result.AlertsCreated != 0 {
		t.Errorf("AlertsCreated = %d, want 0", result.AlertsCreated)
	}
	if len(result.Errors) != 0 {
		t.Errorf("missing data should not be an error: %v", result.Errors)
	}
}

func TestEvaluateIsolatesPlayerFailures(t *testing.T) {
	store := NewMemStore()
	stats := &fakeStats{errFor: "p1"}
	stats.set("p2", "ppg", 8)
	players := []roster.Player{
		{ID: "p1", Name: "Jordan Ellis", Active: true},
		{ID: "p2", Name: "Sam Okafor", Active: true},
	}
	eng := testEngine(t, store, players, stats)

	mustInsertRule(t, store, Rule{
		Name: "low scoring", MetricName: "ppg", Comparison: CompareBelow,
		ThresholdValue: 10, AlertType: TypeBenchmarkLow,
		CheckFrequency: FreqDaily, AppliesTo: AppliesAll,
	})

	result := eng.Evaluate(context.Background(), time.Now().UTC())
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one for p1", result.Errors)
	}
	// p2 still evaluated despite p1's failure.
	if result.AlertsCreated != 1 {
		t.Fatalf("AlertsCreated = %d, want 1", result.AlertsCreated)
	}
}

func TestEvaluateExcludesInvalidRule(t *testing.T) {
	store := NewMemStore()
	stats := &fakeStats{}
	stats.set("p1", "ppg", 8)
	eng := testEngine(t, store, []roster.Player{{ID: "p1", Name: "Jordan Ellis", Active: true}}, stats)

	// Bypass creation-time validation to simulate a misconfigured stored
	// rule: between without a secondary threshold.
	bad := Rule{
		Name: "bad between", MetricName: "ppg", Comparison: CompareBetween,
		ThresholdValue: 5, AlertType: TypeBenchmarkLow, Severity: SeverityWarning,
		TimeWindowDays: 7, CheckFrequency: FreqDaily, AppliesTo: AppliesAll,
		IsActive: true,
	}
	if err := store.InsertRule(context.Background(), &bad); err != nil {
		t.Fatal(err)
	}

	result := eng.Evaluate(context.Background(), time.Now().UTC())
	if len(result.RulesInvalid) != 1 {
		t.Fatalf("RulesInvalid = %v, want one entry", result.RulesInvalid)
	}
	if result.RulesEvaluated != 0 {
		t.Fatalf("invalid rule must not be evaluated")
	}
}

func TestEvaluateFrequencyBuckets(t *testing.T) {
	store := NewMemStore()
	stats := &fakeStats{}
	stats.set("p1", "ppg", 8)
	stats.set("p1", "rpg", 2)
	eng := testEngine(t, store, []roster.Player{{ID: "p1", Name: "Jordan Ellis", Active: true}}, stats)

	mustInsertRule(t, store, Rule{
		Name: "daily scoring", MetricName: "ppg", Comparison: CompareBelow,
		ThresholdValue: 10, AlertType: TypeBenchmarkLow,
		CheckFrequency: FreqDaily, AppliesTo: AppliesAll,
	})
	mustInsertRule(t, store, Rule{
		Name: "hourly boards", MetricName: "rpg", Comparison: CompareBelow,
		ThresholdValue: 4, AlertType: TypeNegativeTrend,
		CheckFrequency: FreqHourly, AppliesTo: AppliesAll,
	})

	result := eng.EvaluateFrequency(context.Background(), FreqHourly, time.Now().UTC())
	if result.RulesConsidered != 1 || result.AlertsCreated != 1 {
		t.Fatalf("hourly bucket: considered=%d created=%d, want 1/1",
			result.RulesConsidered, result.AlertsCreated)
	}
}

func TestEvaluateSpecificPlayers(t *testing.T) {
	store := NewMemStore()
	stats := &fakeStats{}
	stats.set("p1", "ppg", 8)
	stats.set("p2", "ppg", 8)
	players := []roster.Player{
		{ID: "p1", Name: "Jordan Ellis", Active: true},
		{ID: "p2", Name: "Sam Okafor", Active: true},
	}
	eng := testEngine(t, store, players, stats)

	mustInsertRule(t, store, Rule{
		Name: "watch p2", MetricName: "ppg", Comparison: CompareBelow,
		ThresholdValue: 10, AlertType: TypeBenchmarkLow,
		CheckFrequency: FreqDaily, AppliesTo: AppliesSpecific,
		SpecificPlayers: []string{"p2"},
	})

	result := eng.Evaluate(context.Background(), time.Now().UTC())
	if result.AlertsCreated != 1 {
		t.Fatalf("AlertsCreated = %d, want 1", result.AlertsCreated)
	}
	open, _ := store.ListAlerts(context.Background(), Filter{Unresolved: true})
	if open[0].PlayerID != "p2" {
		t.Errorf("alert for %s, want p2", open[0].PlayerID)
	}
}

func TestEvaluateInactiveRulesIgnored(t *testing.T) {
	store := NewMemStore()
	stats := &fakeStats{}
	stats.set("p1", "ppg", 8)
	eng := testEngine(t, store, []roster.Player{{ID: "p1", Name: "Jordan Ellis", Active: true}}, stats)

	r := mustInsertRule(t, store, Rule{
		Name: "low scoring", MetricName: "ppg", Comparison: CompareBelow,
		ThresholdValue: 10, AlertType: TypeBenchmarkLow,
		CheckFrequency: FreqDaily, AppliesTo: AppliesAll,
	})
	if err := store.SetRuleActive(context.Background(), r.ID, false, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	result := eng.Evaluate(context.Background(), time.Now().UTC())
	if result.RulesConsidered != 0 {
		t.Fatalf("RulesConsidered = %d, want 0", result.RulesConsidered)
	}
}
