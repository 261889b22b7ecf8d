package memory

import (
	"context"
	"errors"
	"sync"

	audit "landtrust/pkg/platform/audit"
)

// InMemoryStore keeps admin events in insertion order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.AdminEvent
	// failNext makes the next Append fail; used to exercise rollback paths.
	failNext error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// FailNextAppend makes the next Append return err.
func (s *InMemoryStore) FailNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = errors.New("audit store unavailable")
	}
	s.failNext = err
}

func (s *InMemoryStore) Append(_ context.Context, event audit.AdminEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]audit.AdminEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.AdminEvent
	for _, e := range s.events {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every event; test helper.
func (s *InMemoryStore) All() []audit.AdminEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.AdminEvent(nil), s.events...)
}

// Snapshot implements tx.Snapshotter. Events are append-only, so the length
// is enough to roll back.
func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *InMemoryStore) Restore(snapshot any) {
	n, ok := snapshot.(int)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < len(s.events) {
		s.events = s.events[:n]
	}
}
