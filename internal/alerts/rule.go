// Package alerts implements coach-configured performance alert rules and
// the engine that evaluates them against player metrics.
//
// Each evaluation pass walks active rules, resolves the applicable players
// through the roster provider, fetches windowed metric values, and either
// opens or resolves alerts. One open alert per (player, alert_type, metric)
// lineage at a time.
package alerts

import (
	"strconv"
	"strings"
	"time"

	"github.com/TechEqualizer/Sportlink-sub001/internal/domain"
)

// Comparison operators.
const (
	CompareBelow   = "below"
	CompareAbove   = "above"
	CompareEquals  = "equals"
	CompareBetween = "between"
)

// Check frequencies.
const (
	FreqRealtime = "realtime"
	FreqHourly   = "hourly"
	FreqDaily    = "daily"
	FreqWeekly   = "weekly"
)

// Roster segments a rule can apply to.
const (
	AppliesAll      = "all"
	AppliesStarters = "starters"
	AppliesBench    = "bench"
	AppliesSpecific = "specific"
)

const defaultTimeWindowDays = 7

// Rule is a coach-configured alert rule. The only entity end users edit
// directly after creation.
type Rule struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	MetricName         string    `json:"metric_name"`
	Comparison         string    `json:"comparison"`
	ThresholdValue     float64   `json:"threshold_value"`
	SecondaryThreshold *float64  `json:"secondary_threshold,omitempty"`
	TimeWindowDays     int       `json:"time_window_days"`
	AlertType          string    `json:"alert_type"`
	Severity           string    `json:"severity"`
	AlertMessage       string    `json:"alert_message"`
	IsActive           bool      `json:"is_active"`
	CheckFrequency     string    `json:"check_frequency"`
	AppliesTo          string    `json:"applies_to"`
	SpecificPlayers    []string  `json:"specific_players,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func validComparison(c string) bool {
	switch c {
	case CompareBelow, CompareAbove, CompareEquals, CompareBetween:
		return true
	}
	return false
}

func validFrequency(f string) bool {
	switch f {
	case FreqRealtime, FreqHourly, FreqDaily, FreqWeekly:
		return true
	}
	return false
}

func validAppliesTo(a string) bool {
	switch a {
	case AppliesAll, AppliesStarters, AppliesBench, AppliesSpecific:
		return true
	}
	return false
}

// Normalize fills rule defaults: time window 7 days, severity warning,
// active on creation.
func (r *Rule) Normalize() {
	if r.TimeWindowDays == 0 {
		r.TimeWindowDays = defaultTimeWindowDays
	}
	if r.Severity == "" {
		r.Severity = SeverityWarning
	}
}

// Validate checks the rule configuration at creation/update time. A between
// comparison without a secondary threshold is rejected here, never at
// evaluation time.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return domain.Invalid("name", "rule name is required")
	}
	if strings.TrimSpace(r.MetricName) == "" {
		return domain.Invalid("metric_name", "metric name is required")
	}
	if !validComparison(r.Comparison) {
		return domain.Invalid("comparison", "unknown comparison %q", r.Comparison)
	}
	if r.Comparison == CompareBetween {
		if r.SecondaryThreshold == nil {
			return domain.Invalid("secondary_threshold", "between comparison requires a secondary threshold")
		}
		if *r.SecondaryThreshold < r.ThresholdValue {
			return domain.Invalid("secondary_threshold", "secondary threshold must not be below the primary threshold")
		}
	}
	if !validAlertType(r.AlertType) {
		return domain.Invalid("alert_type", "unknown alert type %q", r.AlertType)
	}
	if !validSeverity(r.Severity) {
		return domain.Invalid("severity", "unknown severity %q", r.Severity)
	}
	if !validFrequency(r.CheckFrequency) {
		return domain.Invalid("check_frequency", "unknown check frequency %q", r.CheckFrequency)
	}
	if !validAppliesTo(r.AppliesTo) {
		return domain.Invalid("applies_to", "unknown roster segment %q", r.AppliesTo)
	}
	if r.AppliesTo == AppliesSpecific && len(r.SpecificPlayers) == 0 {
		return domain.Invalid("specific_players", "applies_to=specific requires at least one player")
	}
	if r.TimeWindowDays < 0 {
		return domain.Invalid("time_window", "time window must be positive")
	}
	return nil
}

// Satisfied evaluates the rule's comparison against a metric value.
// Equality uses the given epsilon as an explicit tolerance policy since
// metric values are decimal-quantized.
func (r *Rule) Satisfied(value, epsilon float64) bool {
	switch r.Comparison {
	case CompareBelow:
		return value < r.ThresholdValue
	case CompareAbove:
		return value > r.ThresholdValue
	case CompareEquals:
		diff := value - r.ThresholdValue
		if diff < 0 {
			diff = -diff
		}
		return diff <= epsilon
	case CompareBetween:
		return value >= r.ThresholdValue && value <= *r.SecondaryThreshold
	}
	return false
}

// RenderMessage substitutes {player}, {metric}, {value}, and {threshold}
// placeholders in the rule's alert message template.
func (r *Rule) RenderMessage(playerName string, value float64) string {
	msg := r.AlertMessage
	if msg == "" {
		msg = "{player}: {metric} is {value} (threshold {threshold})"
	}
	rep := strings.NewReplacer(
		"{player}", playerName,
		"{metric}", r.MetricName,
		"{value}", trimFloat(value),
		"{threshold}", trimFloat(r.ThresholdValue),
	)
	return rep.Replace(msg)
}

func trimFloat(f float64) string {
	s := strings.TrimRight(strings.TrimRight(strconv.FormatFloat(f, 'f', 2, 64), "0"), ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
