package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TechEqualizer/Sportlink-sub001/internal/domain"
)

// PGStore is the Postgres-backed Store. Hot read paths use prepared
// statements registered by internal/db; writes use inline SQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps a connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Insert(ctx context.Context, m *Message) error {
	meta, _ := json.Marshal(nonNilMap(m.Metadata))
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (
			type, sender_id, recipient_id, content, priority,
			metadata, status, expires_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		RETURNING id`,
		m.Type, m.SenderID, m.RecipientID, m.Content, m.Priority,
		meta, m.Status, m.ExpiresAt, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PGStore) GetByID(ctx context.Context, id int64) (*Message, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx, "message_by_id", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}
	return m, nil
}

func (s *PGStore) ListForUser(ctx context.Context, userID string, now time.Time) ([]Message, error) {
	rows, err := s.pool.Query(ctx, "messages_for_user", userID, now)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// UpsertRead relies on the (message_id, user_id) primary key: a single
// ON CONFLICT DO UPDATE statement, safe under concurrent devices.
func (s *PGStore) UpsertRead(ctx context.Context, r *MessageRead) error {
	device, _ := json.Marshal(nonNilMap(r.DeviceInfo))
	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_reads (message_id, user_id, read_at, device_info)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (message_id, user_id) DO UPDATE SET
			read_at = EXCLUDED.read_at,
			device_info = EXCLUDED.device_info`,
		r.MessageID, r.UserID, r.ReadAt, device,
	)
	if err != nil {
		return fmt.Errorf("upsert read receipt: %w", err)
	}
	return nil
}

func (s *PGStore) UnreadCountForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "unread_count_for_user", userID, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}

func (s *PGStore) UnreadCountsBySender(ctx context.Context, senderID string, now time.Time) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, "unread_counts_by_sender", senderID, now)
	if err != nil {
		return nil, fmt.Errorf("unread counts by sender: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var recipient string
		var n int
		if err := rows.Scan(&recipient, &n); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		counts[recipient] = n
	}
	return counts, rows.Err()
}

func (s *PGStore) SyncStatus(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages m
		SET status = 'read', updated_at = $1
		FROM message_reads r
		WHERE r.message_id = m.id
		  AND m.recipient_id IS NOT NULL
		  AND r.user_id = m.recipient_id
		  AND m.status <> 'read'`, now)
	if err != nil {
		return 0, fmt.Errorf("sync message status: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var meta []byte
	err := row.Scan(
		&m.ID, &m.Type, &m.SenderID, &m.RecipientID, &m.Content,
		&m.Priority, &meta, &m.Status, &m.ExpiresAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &m.Metadata)
	}
	return &m, nil
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
