package alerts

import (
	"context"
	"time"
)

// Filter narrows alert listings.
type Filter struct {
	PlayerID   string
	Unresolved bool
}

// Store persists alert rules and performance alerts.
//
// CreateIfNoOpen must be atomic per lineage: when two evaluation passes
// overlap, exactly one creates the alert. The Postgres implementation backs
// this with a partial unique index on unresolved alerts; the memory
// implementation with a single mutex-guarded check-and-insert.
type Store interface {
	// Rules. Name uniqueness is enforced on insert.
	InsertRule(ctx context.Context, r *Rule) error
	GetRule(ctx context.Context, id int64) (*Rule, error)
	ListRules(ctx context.Context, activeOnly bool) ([]Rule, error)
	UpdateRule(ctx context.Context, r *Rule) error
	SetRuleActive(ctx context.Context, id int64, active bool, now time.Time) error

	// Alerts.
	GetAlert(ctx context.Context, id int64) (*Alert, error)
	ListAlerts(ctx context.Context, f Filter) ([]Alert, error)

	// CreateIfNoOpen creates a if its lineage has no unresolved alert.
	// Returns false without error when an open alert already exists.
	CreateIfNoOpen(ctx context.Context, a *Alert) (bool, error)

	// ResolveOpen resolves the unresolved alert for a lineage, if any.
	// Returns false when the lineage has no open alert.
	ResolveOpen(ctx context.Context, l Lineage, now time.Time) (bool, error)

	// Acknowledge marks an alert acknowledged by a user.
	Acknowledge(ctx context.Context, id int64, by string, now time.Time) (*Alert, error)

	// Resolve marks an alert resolved by id (manual resolution).
	Resolve(ctx context.Context, id int64, now time.Time) (*Alert, error)
}
