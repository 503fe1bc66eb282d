package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TechEqualizer/Sportlink-sub001/internal/domain"
)

// PGStore is the Postgres-backed Store. The "one open alert per lineage"
// invariant is enforced by a partial unique index on
// (player_id, alert_type, metric) WHERE resolved_at IS NULL, which makes
// CreateIfNoOpen a single atomic statement.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps a connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const ruleColumns = `id, name, description, metric_name, comparison,
	threshold_value, secondary_threshold, time_window_days, alert_type,
	severity, alert_message, is_active, check_frequency, applies_to,
	specific_players, created_at, updated_at`

const alertColumns = `id, player_id, alert_type, severity, metric,
	current_value, threshold_value, trend, message, action_required,
	acknowledged, acknowledged_by, acknowledged_at, resolved_at,
	created_at, updated_at`

func (s *PGStore) InsertRule(ctx context.Context, r *Rule) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO alert_rules (
			name, description, metric_name, comparison, threshold_value,
			secondary_threshold, time_window_days, alert_type, severity,
			alert_message, is_active, check_frequency, applies_to,
			specific_players, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)
		RETURNING id`,
		r.Name, r.Description, r.MetricName, r.Comparison, r.ThresholdValue,
		r.SecondaryThreshold, r.TimeWindowDays, r.AlertType, r.Severity,
		r.AlertMessage, r.IsActive, r.CheckFrequency, r.AppliesTo,
		r.SpecificPlayers, r.CreatedAt,
	).Scan(&r.ID)
	if isUniqueViolation(err) {
		return domain.Invalid("name", "rule %q already exists", r.Name)
	}
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (s *PGStore) GetRule(ctx context.Context, id int64) (*Rule, error) {
	r, err := scanRule(s.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM alert_rules WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get rule %d: %w", id, err)
	}
	return r, nil
}

func (s *PGStore) ListRules(ctx context.Context, activeOnly bool) ([]Rule, error) {
	q := `SELECT ` + ruleColumns + ` FROM alert_rules`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateRule(ctx context.Context, r *Rule) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE alert_rules SET
			name = $2, description = $3, metric_name = $4, comparison = $5,
			threshold_value = $6, secondary_threshold = $7,
			time_window_days = $8, alert_type = $9, severity = $10,
			alert_message = $11, is_active = $12, check_frequency = $13,
			applies_to = $14, specific_players = $15, updated_at = $16
		WHERE id = $1`,
		r.ID, r.Name, r.Description, r.MetricName, r.Comparison,
		r.ThresholdValue, r.SecondaryThreshold, r.TimeWindowDays,
		r.AlertType, r.Severity, r.AlertMessage, r.IsActive,
		r.CheckFrequency, r.AppliesTo, r.SpecificPlayers, r.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.Invalid("name", "rule %q already exists", r.Name)
	}
	if err != nil {
		return fmt.Errorf("update rule %d: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PGStore) SetRuleActive(ctx context.Context, id int64, active bool, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE alert_rules SET is_active = $2, updated_at = $3 WHERE id = $1`,
		id, active, now)
	if err != nil {
		return fmt.Errorf("set rule %d active=%v: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PGStore) GetAlert(ctx context.Context, id int64) (*Alert, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM performance_alerts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get alert %d: %w", id, err)
	}
	return a, nil
}

func (s *PGStore) ListAlerts(ctx context.Context, f Filter) ([]Alert, error) {
	q := `SELECT ` + alertColumns + ` FROM performance_alerts WHERE true`
	args := []any{}
	if f.PlayerID != "" {
		args = append(args, f.PlayerID)
		q += fmt.Sprintf(" AND player_id = $%d", len(args))
	}
	if f.Unresolved {
		q += " AND resolved_at IS NULL"
	}
	q += " ORDER BY id DESC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PGStore) CreateIfNoOpen(ctx context.Context, a *Alert) (bool, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO performance_alerts (
			player_id, alert_type, severity, metric, current_value,
			threshold_value, trend, message, action_required,
			acknowledged, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,false,$10,$10)
		ON CONFLICT (player_id, alert_type, metric) WHERE resolved_at IS NULL
		DO NOTHING
		RETURNING id`,
		a.PlayerID, a.AlertType, a.Severity, a.Metric, a.CurrentValue,
		a.ThresholdValue, a.Trend, a.Message, a.ActionRequired, a.CreatedAt,
	).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict with the open-lineage index: an unresolved alert exists.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create alert: %w", err)
	}
	return true, nil
}

func (s *PGStore) ResolveOpen(ctx context.Context, l Lineage, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE performance_alerts
		SET resolved_at = $4, updated_at = $4
		WHERE player_id = $1 AND alert_type = $2 AND metric = $3
		  AND resolved_at IS NULL`,
		l.PlayerID, l.AlertType, l.Metric, now)
	if err != nil {
		return false, fmt.Errorf("resolve open alert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) Acknowledge(ctx context.Context, id int64, by string, now time.Time) (*Alert, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx, `
		UPDATE performance_alerts
		SET acknowledged = true, acknowledged_by = $2, acknowledged_at = $3,
			updated_at = $3
		WHERE id = $1
		RETURNING `+alertColumns, id, by, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("acknowledge alert %d: %w", id, err)
	}
	return a, nil
}

func (s *PGStore) Resolve(ctx context.Context, id int64, now time.Time) (*Alert, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx, `
		UPDATE performance_alerts
		SET resolved_at = COALESCE(resolved_at, $2), updated_at = $2
		WHERE id = $1
		RETURNING `+alertColumns, id, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("resolve alert %d: %w", id, err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var r Rule
	err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.MetricName, &r.Comparison,
		&r.ThresholdValue, &r.SecondaryThreshold, &r.TimeWindowDays,
		&r.AlertType, &r.Severity, &r.AlertMessage, &r.IsActive,
		&r.CheckFrequency, &r.AppliesTo, &r.SpecificPlayers,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanAlert(row rowScanner) (*Alert, error) {
	var a Alert
	var ackBy *string
	err := row.Scan(
		&a.ID, &a.PlayerID, &a.AlertType, &a.Severity, &a.Metric,
		&a.CurrentValue, &a.ThresholdValue, &a.Trend, &a.Message,
		&a.ActionRequired, &a.Acknowledged, &ackBy, &a.AcknowledgedAt,
		&a.ResolvedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ackBy != nil {
		a.AcknowledgedBy = *ackBy
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
