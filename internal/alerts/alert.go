package alerts

import "time"

// Alert types.
const (
	TypeBenchmarkLow     = "benchmark_low"
	TypeNegativeTrend    = "negative_trend"
	TypeMissedGames      = "missed_games"
	TypeAcademicDecline  = "academic_decline"
	TypeImprovement      = "improvement"
	TypeMilestoneReached = "milestone_reached"
)

// Severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityAlert    = "alert"
	SeverityCritical = "critical"
)

// Alert is a performance alert materialized by the engine when a rule
// fires. Owned by the system once created: the only mutations are
// acknowledgement and resolution, never deletion.
type Alert struct {
	ID             int64      `json:"id"`
	PlayerID       string     `json:"player_id"`
	AlertType      string     `json:"alert_type"`
	Severity       string     `json:"severity"`
	Metric         string     `json:"metric"`
	CurrentValue   float64    `json:"current_value"`
	ThresholdValue float64    `json:"threshold_value"`
	Trend          float64    `json:"trend"`
	Message        string     `json:"message"`
	ActionRequired bool       `json:"action_required"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Lineage identifies the logical thread of alerts for one player/type/metric
// combination. At most one unresolved alert exists per lineage.
type Lineage struct {
	PlayerID  string
	AlertType string
	Metric    string
}

// Lineage returns the alert's lineage key.
func (a *Alert) Lineage() Lineage {
	return Lineage{PlayerID: a.PlayerID, AlertType: a.AlertType, Metric: a.Metric}
}

// Resolved reports whether the alert has been resolved.
func (a *Alert) Resolved() bool {
	return a.ResolvedAt != nil
}

func validAlertType(t string) bool {
	switch t {
	case TypeBenchmarkLow, TypeNegativeTrend, TypeMissedGames,
		TypeAcademicDecline, TypeImprovement, TypeMilestoneReached:
		return true
	}
	return false
}

func validSeverity(s string) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityAlert, SeverityCritical:
		return true
	}
	return false
}

// actionRequired derives the action_required flag from severity. Fixed
// policy: critical and alert demand action, info and warning do not.
func actionRequired(severity string) bool {
	return severity == SeverityCritical || severity == SeverityAlert
}
