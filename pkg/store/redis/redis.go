// Package redis provides a mint store on Redis. Each mint is one string key
// <prefix><namespace>:<id> holding the serialized record.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/minted/minted-core/pkg/mint"
	"github.com/minted/minted-core/pkg/store"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is prepended to every key.
const DefaultPrefix = "minted:"

const scanCount = 100

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store implements store.Store on a Redis client.
type Store struct {
	client *redis.Client
	prefix string
	owned  bool
}

var _ store.Store = (*Store)(nil)

// Open connects to Redis and returns a store for namespace.
func Open(ctx context.Context, cfg Config, namespace string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	s := New(client, cfg.Prefix, namespace)
	s.owned = true
	return s, nil
}

// New wraps an existing client. Close does not close a client passed here.
func New(client *redis.Client, prefix, namespace string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if namespace != "" {
		prefix += namespace + ":"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Get retrieves a mint by id.
func (s *Store) Get(ctx context.Context, id string) (mint.Mint, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mint: %w", err)
	}
	return mint.UnmarshalRecord(data)
}

// Add stores m with SETNX.
func (s *Store) Add(ctx context.Context, m mint.Mint) error {
	id, data, err := encode(m)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.key(id), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to write mint: %w", err)
	}
	if !ok {
		return store.ErrAlreadyExists
	}
	return nil
}

// Put stores m, replacing any existing value.
func (s *Store) Put(ctx context.Context, m mint.Mint) error {
	id, data, err := encode(m)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write mint: %w", err)
	}
	return nil
}

// Delete removes a mint by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete mint: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List scans the namespace and returns every mint.
func (s *Store) List(ctx context.Context) ([]mint.Mint, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan mints: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read mints: %w", err)
	}

	mints := make([]mint.Mint, 0, len(values))
	for i, v := range values {
		// Deleted between SCAN and MGET.
		str, ok := v.(string)
		if !ok {
			continue
		}
		m, err := mint.UnmarshalRecord([]byte(str))
		if err != nil {
			return nil, fmt.Errorf("failed to read mint %s: %w", keys[i], err)
		}
		mints = append(mints, m)
	}

	store.SortByCreated(mints)
	return mints, nil
}

// Close closes the client if Open created it.
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

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
