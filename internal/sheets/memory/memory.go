// Package memory provides an in-memory ledger writer for tests and for
// running without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "xitique/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	items []ports.LedgerEntry
}

var _ ports.LedgerWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e ports.LedgerEntry) (string, error) {
	if err := e.Transaction.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Entries returns a copy of everything appended so far.
func (s *Store) Entries() []ports.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.LedgerEntry(nil), s.items...)
}
