// Package memory provides a process-local mint store backed by go-cache.
package memory

import (
	"context"
	"fmt"

	"github.com/minted/minted-core/pkg/mint"
	"github.com/minted/minted-core/pkg/store"
	"github.com/patrickmn/go-cache"
)

// Store keeps serialized mint records in memory. Records never expire.
// Mints are stored as bytes so callers cannot mutate stored state through
// a returned pointer.
type Store struct {
	c *cache.Cache
}

var _ store.Store = (*Store)(nil)

// New creates an empty memory store.
func New() *Store {
	return &Store{c: cache.New(cache.NoExpiration, 0)}
}

// Get returns the mint with the given id.
func (s *Store) Get(_ context.Context, id string) (mint.Mint, error) {
	v, ok := s.c.Get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return mint.UnmarshalRecord(v.([]byte))
}

// Add inserts m if its id is not yet present.
func (s *Store) Add(_ context.Context, m mint.Mint) error {
	id, data, err := encode(m)
	if err != nil {
		return err
	}
	// go-cache Add checks and sets under one lock.
	if err := s.c.Add(id, data, cache.NoExpiration); err != nil {
		return store.ErrAlreadyExists
	}
	return nil
}

// Put inserts or replaces m.
func (s *Store) Put(_ context.Context, m mint.Mint) error {
	id, data, err := encode(m)
	if err != nil {
		return err
	}
	s.c.Set(id, data, cache.NoExpiration)
	return nil
}

// Delete removes the mint with the given id.
func (s *Store) Delete(_ context.Context, id string) error {
	if _, ok := s.c.Get(id); !ok {
		return store.ErrNotFound
	}
	s.c.Delete(id)
	return nil
}

// List returns all stored mints.
func (s *Store) List(_ context.Context) ([]mint.Mint, error) {
	items := s.c.Items()
	out := make([]mint.Mint, 0, len(items))
	for id, item := range items {
		m, err := mint.UnmarshalRecord(item.Object.([]byte))
		if err != nil {
			return nil, fmt.Errorf("failed to read mint %s: %w", id, err)
		}
		out = append(out, m)
	}
	store.SortByCreated(out)
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func encode(m mint.Mint) (string, []byte, error) {
	id, err := store.IDOf(m)
	if err != nil {
		return "", nil, err
	}
	data, err := mint.MarshalRecord(m)
	if err != nil {
		return "", nil, err
	}
	return id, data, nil
}
