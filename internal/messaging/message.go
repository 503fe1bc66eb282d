// Package messaging implements the coach/player message store and the
// per-recipient read tracker.
//
// Messages are broadcast (visible to everyone), direct (one recipient), or
// alert (system-generated, delivered like direct). Read state is tracked per
// (message, user) pair in MessageRead records; the Status field on Message is
// a denormalized display hint refreshed in the background, never the source
// of truth.
package messaging

import (
	"strings"
	"time"

	"github.com/TechEqualizer/Sportlink-sub001/internal/domain"
)

// Message types.
const (
	TypeBroadcast = "broadcast"
	TypeDirect    = "direct"
	TypeAlert     = "alert"
)

// Message priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Denormalized delivery status values.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

const maxContentLength = 4000

// Message is a single message record.
type Message struct {
	ID          int64             `json:"id"`
	Type        string            `json:"type"`
	SenderID    string            `json:"sender_id"`
	RecipientID *string           `json:"recipient_id,omitempty"`
	Content     string            `json:"content"`
	Priority    string            `json:"priority"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Status      string            `json:"status"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Expired reports whether the message is expired as of now.
// Messages with expires_at at or before now are hidden from listings and
// unread counts but never deleted.
func (m *Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// VisibleTo reports whether the message is addressed to userID, either
// directly or via broadcast.
func (m *Message) VisibleTo(userID string) bool {
	if m.Type == TypeBroadcast {
		return true
	}
	return m.RecipientID != nil && *m.RecipientID == userID
}

// MessageRead is a read receipt, unique per (message, user) pair.
// Repeated reads upsert the same record rather than duplicating it.
type MessageRead struct {
	MessageID  int64             `json:"message_id"`
	UserID     string            `json:"user_id"`
	ReadAt     time.Time         `json:"read_at"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
}

// SendInput carries the fields for creating a message.
type SendInput struct {
	SenderID    string            `json:"sender_id"`
	Type        string            `json:"type"`
	RecipientID *string           `json:"recipient_id,omitempty"`
	Content     string            `json:"content"`
	Priority    string            `json:"priority,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

func validType(t string) bool {
	return t == TypeBroadcast || t == TypeDirect || t == TypeAlert
}

func validPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Validate checks the creation invariants. Broadcast messages must not name
// a recipient; direct and alert messages must name exactly one.
func (in *SendInput) Validate() error {
	if in.SenderID == "" {
		return domain.Invalid("sender_id", "sender is required")
	}
	if !validType(in.Type) {
		return domain.Invalid("type", "unknown message type %q", in.Type)
	}
	if strings.TrimSpace(in.Content) == "" {
		return domain.Invalid("content", "content must not be empty")
	}
	if len(in.Content) > maxContentLength {
		return domain.Invalid("content", "content exceeds %d characters", maxContentLength)
	}
	if in.Priority != "" && !validPriority(in.Priority) {
		return domain.Invalid("priority", "unknown priority %q", in.Priority)
	}
	switch in.Type {
	case TypeBroadcast:
		if in.RecipientID != nil {
			return domain.Invalid("recipient_id", "broadcast messages must not have a recipient")
		}
	default:
		if in.RecipientID == nil || *in.RecipientID == "" {
			return domain.Invalid("recipient_id", "%s messages require a recipient", in.Type)
		}
	}
	return nil
}
