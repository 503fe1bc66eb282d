// Package db provides a pgxpool-based connection pool with prepared
// statement registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TechEqualizer/Sportlink-sub001/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers the statements the messaging and
// alerting hot paths use. Prepared statements eliminate parse overhead on
// every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Messaging: lookups and inbox listing
		"message_by_id": `
			SELECT id, type, sender_id, recipient_id, content, priority,
			       metadata, status, expires_at, created_at, updated_at
			FROM messages WHERE id = $1`,
		"messages_for_user": `
			SELECT id, type, sender_id, recipient_id, content, priority,
			       metadata, status, expires_at, created_at, updated_at
			FROM messages
			WHERE (recipient_id = $1 OR type = 'broadcast')
			  AND (expires_at IS NULL OR expires_at > $2)
			ORDER BY created_at DESC, id ASC`,

		// Messaging: unread aggregation (left anti-join against receipts)
		"unread_count_for_user": `
			SELECT count(*)
			FROM messages m
			LEFT JOIN message_reads r
			  ON r.message_id = m.id AND r.user_id = $1
			WHERE (m.recipient_id = $1 OR m.type = 'broadcast')
			  AND (m.expires_at IS NULL OR m.expires_at > $2)
			  AND r.message_id IS NULL`,
		"unread_counts_by_sender": `
			SELECT m.recipient_id,
			       count(*) FILTER (WHERE r.message_id IS NULL)
			FROM messages m
			LEFT JOIN message_reads r
			  ON r.message_id = m.id AND r.user_id = m.recipient_id
			WHERE m.sender_id = $1
			  AND m.type = 'direct'
			  AND m.recipient_id IS NOT NULL
			  AND (m.expires_at IS NULL OR m.expires_at > $2)
			GROUP BY m.recipient_id`,

		// Roster segments
		"roster_all":      "SELECT id, name, position, starter, active FROM players WHERE active",
		"roster_starters": "SELECT id, name, position, starter, active FROM players WHERE active AND starter",
		"roster_bench":    "SELECT id, name, position, starter, active FROM players WHERE active AND NOT starter",
		"roster_specific": "SELECT id, name, position, starter, active FROM players WHERE active AND id = ANY($1)",

		// Statistics: windowed metric aggregation
		"metric_over_window": `
			SELECT avg(value)
			FROM player_stat_entries
			WHERE player_id = $1 AND metric = $2
			  AND recorded_at > $3 AND recorded_at <= $4`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
