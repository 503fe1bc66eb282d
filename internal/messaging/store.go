package messaging

import (
	"context"
	"time"
)

// Store persists messages and read receipts.
//
// Implementations must make UpsertRead a single atomic insert-or-update per
// (message_id, user_id) pair so concurrent reads from multiple devices never
// race or duplicate. Two implementations exist: PGStore (Postgres) and
// MemStore (in-memory, used by tests and the dev server).
type Store interface {
	// Insert persists a new message and assigns its ID.
	Insert(ctx context.Context, m *Message) error

	// GetByID returns a message or domain.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Message, error)

	// ListForUser returns messages visible to userID (direct-to-user or
	// broadcast), excluding those expired as of now, newest first. Ties on
	// created_at keep insertion order.
	ListForUser(ctx context.Context, userID string, now time.Time) ([]Message, error)

	// UpsertRead atomically creates or overwrites the read receipt for
	// (r.MessageID, r.UserID).
	UpsertRead(ctx context.Context, r *MessageRead) error

	// UnreadCountForUser counts messages visible to userID, not expired as
	// of now, with no read receipt by userID.
	UnreadCountForUser(ctx context.Context, userID string, now time.Time) (int, error)

	// UnreadCountsBySender groups senderID's direct messages by recipient
	// and counts those the recipient has not read, excluding expired ones.
	// Recipients whose messages are all read appear with a zero count.
	UnreadCountsBySender(ctx context.Context, senderID string, now time.Time) (map[string]int, error)

	// SyncStatus refreshes the denormalized status column from read
	// receipts: direct messages read by their recipient move to
	// StatusRead. Returns the number of rows updated.
	SyncStatus(ctx context.Context, now time.Time) (int, error)
}
