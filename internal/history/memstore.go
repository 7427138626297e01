package history

import (
	"context"
	"sync"
)

// MemoryStore keeps the history in process memory. It backs the "memory"
// history backend and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records []TabRecord
	saves   int
}

// NewMemoryStore returns a store seeded with records.
func NewMemoryStore(records ...TabRecord) *MemoryStore {
	return &MemoryStore{records: Clone(records)}
}

func (s *MemoryStore) LoadHistory(ctx context.Context) ([]TabRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Clone(s.records), nil
}

func (s *MemoryStore) SaveHistory(ctx context.Context, records []TabRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = Clone(records)
	s.saves++
	return nil
}

// Saves reports how many times SaveHistory ran.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
