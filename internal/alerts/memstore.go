package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/TechEqualizer/Sportlink-sub001/internal/domain"
)

// MemStore is an in-memory Store. Used by tests and local development.
type MemStore struct {
	mu          sync.RWMutex
	nextRuleID  int64
	nextAlertID int64
	rules       map[int64]*Rule
	ruleNames   map[string]int64
	alerts      map[int64]*Alert
	open        map[Lineage]int64
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		nextRuleID:  1,
		nextAlertID: 1,
		rules:       make(map[int64]*Rule),
		ruleNames:   make(map[string]int64),
		alerts:      make(map[int64]*Alert),
		open:        make(map[Lineage]int64),
	}
}

func (s *MemStore) InsertRule(ctx context.Context, r *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ruleNames[r.Name]; exists {
		return domain.Invalid("name", "rule %q already exists", r.Name)
	}
	r.ID = s.nextRuleID
	s.nextRuleID++
	cp := *r
	s.rules[r.ID] = &cp
	s.ruleNames[r.Name] = r.ID
	return nil
}

func (s *MemStore) GetRule(ctx context.Context, id int64) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemStore) ListRules(ctx context.Context, activeOnly bool) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Rule
	for _, r := range s.rules {
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) UpdateRule(ctx context.Context, r *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.rules[r.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if other, exists := s.ruleNames[r.Name]; exists && other != r.ID {
		return domain.Invalid("name", "rule %q already exists", r.Name)
	}
	delete(s.ruleNames, old.Name)
	cp := *r
	s.rules[r.ID] = &cp
	s.ruleNames[r.Name] = r.ID
	return nil
}

func (s *MemStore) SetRuleActive(ctx context.Context, id int64, active bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.IsActive = active
	r.UpdatedAt = now
	return nil
}

func (s *MemStore) GetAlert(ctx context.Context, id int64) (*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemStore) ListAlerts(ctx context.Context, f Filter) ([]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Alert
	for _, a := range s.alerts {
		if f.PlayerID != "" && a.PlayerID != f.PlayerID {
			continue
		}
		if f.Unresolved && a.Resolved() {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemStore) CreateIfNoOpen(ctx context.Context, a *Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := a.Lineage()
	if _, exists := s.open[l]; exists {
		return false, nil
	}
	a.ID = s.nextAlertID
	s.nextAlertID++
	cp := *a
	s.alerts[a.ID] = &cp
	s.open[l] = a.ID
	return true, nil
}

func (s *MemStore) ResolveOpen(ctx context.Context, l Lineage, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, exists := s.open[l]
	if !exists {
		return false, nil
	}
	a := s.alerts[id]
	resolved := now
	a.ResolvedAt = &resolved
	a.UpdatedAt = now
	delete(s.open, l)
	return true, nil
}

func (s *MemStore) Acknowledge(ctx context.Context, id int64, by string, now time.Time) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	a.Acknowledged = true
	a.AcknowledgedBy = by
	ackAt := now
	a.AcknowledgedAt = &ackAt
	a.UpdatedAt = now
	cp := *a
	return &cp, nil
}

func (s *MemStore) Resolve(ctx context.Context, id int64, now time.Time) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !a.Resolved() {
		resolved := now
		a.ResolvedAt = &resolved
		a.UpdatedAt = now
		delete(s.open, a.Lineage())
	}
	cp := *a
	return &cp, nil
}
