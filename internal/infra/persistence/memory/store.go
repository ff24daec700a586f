// Package memory implements an in-process catalog used by tests and
// ephemeral sessions.
package memory

import (
	"context"
	"sync"
	"time"

	"somacore/internal/catalog/core"
)

// Store keeps catalog records in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]core.Record
	now     func() time.Time
}

// New returns an empty in-memory catalog.
func New() *Store {
	return &Store{records: make(map[string]core.Record), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Driver() core.Driver { return core.DriverMemory }

func (s *Store) Create(_ context.Context, rec core.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.URI]; exists {
		return core.AlreadyExists(rec.URI)
	}
	rec = rec.Clone()
	rec.Version = 0
	core.Stamp(&rec, s.now())
	s.records[rec.URI] = rec
	return nil
}

func (s *Store) Load(_ context.Context, uri string) (core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[uri]
	if !ok {
		return core.Record{}, core.NotFound(uri)
	}
	return rec.Clone(), nil
}

func (s *Store) Update(_ context.Context, uri string, fn core.Mutator) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[uri]
	if !ok {
		return core.Record{}, core.NotFound(uri)
	}
	next, err := core.Apply(cur, fn, s.now())
	if err != nil {
		return core.Record{}, err
	}
	s.records[uri] = next
	return next.Clone(), nil
}

// Close is a no-op; records are dropped with the Store.
func (s *Store) Close() error { return nil }
