// Package memory provides an in-memory Store used in tests and as the
// default backend when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"xitique/internal/core"
	"xitique/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu            sync.Mutex
	xitiques      map[string]*core.Xitique
	notifications map[string]core.Notification

	// FailSaves makes every write return an error; tests use it to verify
	// that failed persistence leaves caller state untouched.
	FailSaves error
}

func New() *Store {
	return &Store{
		xitiques:      make(map[string]*core.Xitique),
		notifications: make(map[string]core.Notification),
	}
}

func (s *Store) CreateXitique(_ context.Context, x *core.Xitique) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}
	if x.ID == "" {
		x.ID = uuid.New().String()
	}
	if x.CreatedAt.IsZero() {
		x.CreatedAt = time.Now().UTC()
	}
	if x.Status == "" {
		x.Status = core.StatusPlanning
	}
	s.xitiques[x.ID] = clone(x)
	return nil
}

func (s *Store) GetXitique(_ context.Context, id string) (*core.Xitique, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, ok := s.xitiques[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(x), nil
}

func (s *Store) ListXitiques(_ context.Context, includeArchived bool) ([]*core.Xitique, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Xitique
	for _, x := range s.xitiques {
		if x.Archived && !includeArchived {
			continue
		}
		out = append(out, clone(x))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SaveXitique(_ context.Context, x *core.Xitique) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}
	if _, ok := s.xitiques[x.ID]; !ok {
		return storage.ErrNotFound
	}
	for i := range x.Participants {
		if x.Participants[i].ID == "" {
			x.Participants[i].ID = uuid.New().String()
		}
	}
	// Ledger append-only: keep rows the caller no longer carries.
	stored := s.xitiques[x.ID]
	known := make(map[string]bool, len(x.Transactions))
	for _, t := range x.Transactions {
		known[t.ID] = true
	}
	merged := clone(x)
	for _, t := range stored.Transactions {
		if !known[t.ID] {
			merged.Transactions = append(merged.Transactions, t)
		}
	}
	s.xitiques[x.ID] = merged
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*core.Transaction, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.xitiques {
		for _, t := range x.Transactions {
			if t.ID == id {
				tc := t
				return &tc, x.ID, nil
			}
		}
	}
	return nil, "", storage.ErrNotFound
}

func (s *Store) SaveNotifications(_ context.Context, ns []core.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}
	for _, n := range ns {
		if _, exists := s.notifications[n.ID]; exists {
			continue
		}
		s.notifications[n.ID] = n
	}
	return nil
}

func (s *Store) ListNotifications(_ context.Context, unreadOnly bool) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Notification
	for _, n := range s.notifications {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) NotificationIDs(_ context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{}, len(s.notifications))
	for id := range s.notifications {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}

func (s *Store) Close() error { return nil }

func clone(x *core.Xitique) *core.Xitique {
	c := *x
	c.Participants = append([]core.Participant(nil), x.Participants...)
	for i, p := range c.Participants {
		if p.CustomAmount != nil {
			amount := *p.CustomAmount
			c.Participants[i].CustomAmount = &amount
		}
	}
	c.Transactions = append([]core.Transaction(nil), x.Transactions...)
	return &c
}
