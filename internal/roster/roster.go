// Package roster adapts the platform's player directory and statistics
// tables for the alert engine. Segmentation (who counts as a starter) is
// owned by the directory itself; this package only queries it.
package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Player is a directory entry.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
	Starter  bool   `json:"starter"`
	Active   bool   `json:"active"`
}

// Provider resolves a rule's applies_to segment to concrete players.
type Provider interface {
	// Resolve returns the players in a segment. For segment "specific",
	// specific lists the requested player ids; unknown ids are dropped.
	Resolve(ctx context.Context, segment string, specific []string) ([]Player, error)
}

// StatsProvider supplies a player's metric aggregated over a trailing
// window. ok=false means no data exists for that player and metric; the
// engine skips the player rather than treating it as zero.
type StatsProvider interface {
	MetricOver(ctx context.Context, playerID, metric string, windowDays int, now time.Time) (value float64, ok bool, err error)
}

// PGProvider reads the players table.
type PGProvider struct {
	pool *pgxpool.Pool
}

// NewPGProvider wraps a connection pool.
func NewPGProvider(pool *pgxpool.Pool) *PGProvider {
	return &PGProvider{pool: pool}
}

func (p *PGProvider) Resolve(ctx context.Context, segment string, specific []string) ([]Player, error) {
	var rowsQ string
	args := []any{}
	switch segment {
	case "all":
		rowsQ = "roster_all"
	case "starters":
		rowsQ = "roster_starters"
	case "bench":
		rowsQ = "roster_bench"
	case "specific":
		rowsQ = "roster_specific"
		args = append(args, specific)
	default:
		return nil, fmt.Errorf("unknown roster segment %q", segment)
	}

	rows, err := p.pool.Query(ctx, rowsQ, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve roster segment %s: %w", segment, err)
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var pl Player
		if err := rows.Scan(&pl.ID, &pl.Name, &pl.Position, &pl.Starter, &pl.Active); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, pl)
	}
	return players, rows.Err()
}

// PGStats aggregates the player_stat_entries table over a trailing window.
type PGStats struct {
	pool *pgxpool.Pool
}

// NewPGStats wraps a connection pool.
func NewPGStats(pool *pgxpool.Pool) *PGStats {
	return &PGStats{pool: pool}
}

func (s *PGStats) MetricOver(ctx context.Context, playerID, metric string, windowDays int, now time.Time) (float64, bool, error) {
	var value *float64
	err := s.pool.QueryRow(ctx, "metric_over_window",
		playerID, metric, now.AddDate(0, 0, -windowDays), now).Scan(&value)
	if err != nil {
		return 0, false, fmt.Errorf("metric %s for %s: %w", metric, playerID, err)
	}
	if value == nil {
		return 0, false, nil
	}
	return *value, true, nil
}
