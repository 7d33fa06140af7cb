// Package memstore provides an in-memory implementation of dashboard.SourceStore.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/linnemanlabs/regwatch/internal/feed"
)

// Store holds the source catalog in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	sources []feed.Source
	ids     map[string]bool
}

// New initializes a Store seeded with the given sources. Duplicate seed ids are skipped.
func New(seed ...feed.Source) *Store {
	s := &Store{ids: make(map[string]bool, len(seed))}
	for _, src := range seed {
		if s.ids[src.ID] {
			continue
		}
		s.ids[src.ID] = true
		s.sources = append(s.sources, src)
	}
	return s
}

// List returns a copy of the catalog in insertion order.
func (s *Store) List(_ context.Context) ([]feed.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sources), nil
}

// Add appends a source. Ids must be unique.
func (s *Store) Add(_ context.Context, src feed.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[src.ID] {
		return fmt.Errorf("source %q already exists", src.ID)
	}
	s.ids[src.ID] = true
	s.sources = append(s.sources, src)
	return nil
}
