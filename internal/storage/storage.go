// Package storage opens the store.Store adapter selected by configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/minted/minted-core/internal/config"
	"github.com/minted/minted-core/pkg/store"
	"github.com/minted/minted-core/pkg/store/file"
	"github.com/minted/minted-core/pkg/store/memory"
	"github.com/minted/minted-core/pkg/store/postgres"
	"github.com/minted/minted-core/pkg/store/redis"
)

// Open returns the configured store for namespace.
func Open(ctx context.Context, cfg config.Storage, namespace string) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverFile:
		s, err := file.New(cfg.Dir, namespace)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverRedis:
		s, err := redis.Open(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, namespace)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			MaxConns: int32(cfg.Postgres.MaxConns),
			Table:    cfg.Postgres.Table,
		}, namespace)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
