package audit

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds the in-process audit log of a dev server.
const DefaultMemoryCapacity = 10_000

// InMemoryStore keeps the most recent events in arrival order. Once full,
// the oldest event is dropped for each new one.
type InMemoryStore struct {
	mu       sync.RWMutex
	log      []Event
	capacity int
}

func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreN(DefaultMemoryCapacity)
}

// NewInMemoryStoreN returns a store retaining at most capacity events.
func NewInMemoryStoreN(capacity int) *InMemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &InMemoryStore{capacity: capacity}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.log) == s.capacity {
		copy(s.log, s.log[1:])
		s.log = s.log[:len(s.log)-1]
	}
	s.log = append(s.log, event)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.log {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len reports how many events are retained.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log)
}
