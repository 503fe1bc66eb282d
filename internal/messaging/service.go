package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service enforces message invariants on top of a Store.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a messaging service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Send validates and persists a new message with status=sent.
// Returns a *domain.ValidationError when the type/recipient invariant is
// violated or the content is empty.
func (s *Service) Send(ctx context.Context, in SendInput) (*Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	now := time.Now().UTC()
	m := &Message{
		Type:        in.Type,
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Content:     in.Content,
		Priority:    priority,
		Metadata:    in.Metadata,
		Status:      StatusSent,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	s.logger.Info("Message sent",
		"message_id", m.ID, "type", m.Type, "sender", m.SenderID, "priority", m.Priority)
	return m, nil
}

// ListForUser returns the messages visible to userID as of now, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, now time.Time) ([]Message, error) {
	msgs, err := s.store.ListForUser(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", userID, err)
	}
	return msgs, nil
}

// MarkRead records that userID has read messageID. Idempotent: repeated
// calls overwrite read_at and device_info on the same receipt. Returns
// domain.ErrNotFound if the message does not exist.
func (s *Service) MarkRead(ctx context.Context, messageID int64, userID string, deviceInfo map[string]string, now time.Time) (*MessageRead, error) {
	if _, err := s.store.GetByID(ctx, messageID); err != nil {
		return nil, fmt.Errorf("mark read %d: %w", messageID, err)
	}

	r := &MessageRead{
		MessageID:  messageID,
		UserID:     userID,
		ReadAt:     now,
		DeviceInfo: deviceInfo,
	}
	if err := s.store.UpsertRead(ctx, r); err != nil {
		return nil, fmt.Errorf("upsert read receipt: %w", err)
	}
	return r, nil
}

// UnreadCountForUser counts messages visible to userID that userID has not
// read, excluding expired ones.
func (s *Service) UnreadCountForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	n, err := s.store.UnreadCountForUser(ctx, userID, now)
	if err != nil {
		return 0, fmt.Errorf("unread count for %s: %w", userID, err)
	}
	return n, nil
}

// UnreadCountsByPlayer reports, per recipient, how many of coachID's
// outgoing direct messages the recipient has not yet read. This is the
// coach-dashboard view ("who hasn't read what I sent"), distinct from
// UnreadCountForUser ("what's new to me").
func (s *Service) UnreadCountsByPlayer(ctx context.Context, coachID string, now time.Time) (map[string]int, error) {
	counts, err := s.store.UnreadCountsBySender(ctx, coachID, now)
	if err != nil {
		return nil, fmt.Errorf("unread counts by player for %s: %w", coachID, err)
	}
	return counts, nil
}
