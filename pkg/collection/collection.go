// Package collection manages the mints a collector has accepted.
package collection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minted/minted-core/internal/logging"
	"github.com/minted/minted-core/pkg/mint"
	"github.com/minted/minted-core/pkg/store"
	"go.uber.org/zap"
)

// Collection wraps the collector's store.
type Collection struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collection) { c.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) { c.now = now }
}

// New creates a collection on st.
func New(st store.Store, opts ...Option) *Collection {
	c := &Collection{store: st, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a received mint.
func (c *Collection) Get(ctx context.Context, id string) (*mint.ReceivedMint, error) {
	m, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	received, ok := m.(*mint.ReceivedMint)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", store.ErrWrongKind, id, m.Kind())
	}
	return received, nil
}

// List returns every received mint, oldest first.
func (c *Collection) List(ctx context.Context) ([]*mint.ReceivedMint, error) {
	all, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*mint.ReceivedMint, 0, len(all))
	for _, m := range all {
		if received, ok := m.(*mint.ReceivedMint); ok {
			out = append(out, received)
		}
	}
	return out, nil
}

// Use marks a received mint used. Expired mints cannot be used.
func (c *Collection) Use(ctx context.Context, id string) (*mint.ReceivedMint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if mint.IsExpiredAt(m.ExpiresAt, c.now()) {
		return nil, mint.ErrExpired
	}
	if err := m.MarkUsed(); err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mint: %w", err)
	}

	c.logger.Info("mint used", logging.MintID(id))
	return m, nil
}

// Remove discards a received mint. Collectors may remove any mint.
func (c *Collection) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	if !mint.CanDeleteAt(m, mint.ContextCollection, c.now()) {
		return mint.ErrNotDeletable
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}

	c.logger.Info("mint removed", logging.MintID(id))
	return nil
}
