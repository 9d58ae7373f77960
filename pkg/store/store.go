// Package store defines the persistence contract for mints. Issuer records and
// collection entries use the same contract in separate namespaces.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/minted/minted-core/pkg/mint"
)

// Common errors returned by store adapters.
var (
	ErrNotFound      = errors.New("mint not found")
	ErrAlreadyExists = errors.New("mint already exists")
	ErrMissingID     = errors.New("mint has no id")
	ErrWrongKind     = errors.New("stored mint has an unexpected kind")
)

// Namespaces used by the issuer and collector roles.
const (
	NamespaceIssuer     = "issuer"
	NamespaceCollection = "collection"
)

// Store persists mints keyed by id.
type Store interface {
	// Get returns the mint with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (mint.Mint, error)

	// Add inserts m only if its id is absent, atomically. It returns
	// ErrAlreadyExists otherwise.
	Add(ctx context.Context, m mint.Mint) error

	// Put inserts or replaces m.
	Put(ctx context.Context, m mint.Mint) error

	// Delete removes the mint with the given id or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// List returns every stored mint, oldest first.
	List(ctx context.Context) ([]mint.Mint, error)

	// Close releases any connections held by the adapter.
	Close() error
}

// IDOf returns the id of m, or ErrMissingID.
func IDOf(m mint.Mint) (string, error) {
	if m == nil || m.Common().ID == "" {
		return "", ErrMissingID
	}
	return m.Common().ID, nil
}

// SortByCreated orders mints by creation time, then id.
func SortByCreated(ms []mint.Mint) {
	sort.Slice(ms, func(i, j int) bool {
		a, b := ms[i].Common(), ms[j].Common()
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
}
