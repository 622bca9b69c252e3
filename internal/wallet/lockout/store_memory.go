package lockout

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a process-local Store for single-instance deployments
// and tests.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Record)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

// RecordFailure ignores ttl; Tracker.Check expires stale records lazily.
func (s *InMemoryStore) RecordFailure(_ context.Context, key string, at time.Time, _ time.Duration) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		rec = &Record{}
		s.records[key] = rec
	}
	rec.Failures++
	rec.LastFailureAt = at
	c := *rec
	return &c, nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
