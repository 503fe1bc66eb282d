package messaging

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/TechEqualizer/Sportlink-sub001/internal/domain"
)

type readKey struct {
	MessageID int64
	UserID    string
}

// MemStore is an in-memory Store. Used by tests and local development.
// The single mutex makes UpsertRead an atomic insert-or-update, matching
// the Postgres ON CONFLICT semantics.
type MemStore struct {
	mu       sync.RWMutex
	nextID   int64
	messages map[int64]*Message
	reads    map[readKey]*MessageRead
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		nextID:   1,
		messages: make(map[int64]*Message),
		reads:    make(map[readKey]*MessageRead),
	}
}

func (s *MemStore) Insert(ctx context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextID
	s.nextID++
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *MemStore) GetByID(ctx context.Context, id int64) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemStore) ListForUser(ctx context.Context, userID string, now time.Time) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Message
	for _, m := range s.messages {
		if m.VisibleTo(userID) && !m.Expired(now) {
			out = append(out, *m)
		}
	}
	// Insertion order first, then a stable sort by created_at keeps ties in
	// insertion order.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) UpsertRead(ctx context.Context, r *MessageRead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.reads[readKey{r.MessageID, r.UserID}] = &cp
	return nil
}

func (s *MemStore) UnreadCountForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.messages {
		if !m.VisibleTo(userID) || m.Expired(now) {
			continue
		}
		if _, read := s.reads[readKey{m.ID, userID}]; !read {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) UnreadCountsBySender(ctx context.Context, senderID string, now time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, m := range s.messages {
		if m.Type != TypeDirect || m.SenderID != senderID || m.RecipientID == nil || m.Expired(now) {
			continue
		}
		recipient := *m.RecipientID
		if _, read := s.reads[readKey{m.ID, recipient}]; !read {
			counts[recipient]++
		} else if _, seen := counts[recipient]; !seen {
			counts[recipient] = 0
		}
	}
	return counts, nil
}

func (s *MemStore) SyncStatus(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, m := range s.messages {
		if m.Type == TypeBroadcast || m.RecipientID == nil || m.Status == StatusRead {
			continue
		}
		if _, read := s.reads[readKey{m.ID, *m.RecipientID}]; read {
			m.Status = StatusRead
			m.UpdatedAt = now
			updated++
		}
	}
	return updated, nil
}

// ReadReceipt returns the stored receipt for (messageID, userID), if any.
// Test helper; the PG store exposes the same lookup via message_read rows.
func (s *MemStore) ReadReceipt(messageID int64, userID string) (*MessageRead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reads[readKey{messageID, userID}]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}
