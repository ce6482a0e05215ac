package state

import (
	"context"
	"sync"

	"github.com/goliatone/go-history/clone"
)

// MemoryStore is a minimal in-memory Store implementation intended for tests
// and examples. Records are cloned on the way in and out.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	records map[string]Record[T]
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{records: map[string]Record[T]{}}
}

func (s *MemoryStore[T]) Load(_ context.Context, documentID string) (Record[T], bool, error) {
	if documentID == "" {
		return Record[T]{}, false, ErrDocumentIDRequired
	}

	s.mu.RLock()
	record, ok := s.records[documentID]
	s.mu.RUnlock()
	if !ok {
		return Record[T]{}, false, nil
	}
	return clone.Value(record), true, nil
}

func (s *MemoryStore[T]) Save(_ context.Context, documentID string, record Record[T]) error {
	if documentID == "" {
		return ErrDocumentIDRequired
	}

	s.mu.Lock()
	s.records[documentID] = clone.Value(record)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored documents.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
