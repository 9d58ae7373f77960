// Package postgres provides a mint store on PostgreSQL via pgx. All
// namespaces share one table keyed by (namespace, id).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minted/minted-core/pkg/crypto"
	"github.com/minted/minted-core/pkg/mint"
	"github.com/minted/minted-core/pkg/store"
)

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "mints"

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Config holds connection settings.
type Config struct {
	DSN      string
	MaxConns int32
	Table    string
}

// Store implements store.Store on a pgx pool.
type Store struct {
	pool      *pgxpool.Pool
	table     string
	namespace string
	owned     bool
}

var _ store.Store = (*Store)(nil)

// Open connects, ensures the schema exists and returns a store for namespace.
func Open(ctx context.Context, cfg Config, namespace string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s, err := New(ctx, pool, cfg.Table, namespace)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an existing pool and creates the table if needed. Close does not
// close a pool passed here.
func New(ctx context.Context, pool *pgxpool.Pool, table, namespace string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	s := &Store{pool: pool, table: table, namespace: namespace}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	// table is validated against tableName before it reaches any statement.
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	namespace  TEXT   NOT NULL,
	id         TEXT   NOT NULL,
	kind       TEXT   NOT NULL,
	issuer_did TEXT   NOT NULL DEFAULT '',
	status     TEXT   NOT NULL,
	created_at BIGINT NOT NULL,
	expires_at TEXT   NOT NULL,
	body       JSONB  NOT NULL,
	PRIMARY KEY (namespace, id)
)`, s.table)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Get retrieves a mint by id.
func (s *Store) Get(ctx context.Context, id string) (mint.Mint, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT body FROM %s WHERE namespace = $1 AND id = $2`, s.table),
		s.namespace, id,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mint: %w", err)
	}
	return mint.UnmarshalRecord(body)
}

// Add inserts m unless a row with its id exists.
func (s *Store) Add(ctx context.Context, m mint.Mint) error {
	r, err := newRow(m)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (namespace, id, kind, issuer_did, status, created_at, expires_at, body)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (namespace, id) DO NOTHING`, s.table),
		r.args(s.namespace)...,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

// Put inserts or replaces m.
func (s *Store) Put(ctx context.Context, m mint.Mint) error {
	r, err := newRow(m)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (namespace, id, kind, issuer_did, status, created_at, expires_at, body)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (namespace, id) DO UPDATE SET
	kind = EXCLUDED.kind,
	issuer_did = EXCLUDED.issuer_did,
	status = EXCLUDED.status,
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at,
	body = EXCLUDED.body`, s.table),
		r.args(s.namespace)...,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mint: %w", err)
	}
	return nil
}

// Delete removes a mint by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND id = $2`, s.table),
		s.namespace, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete mint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// List returns every mint in the namespace.
func (s *Store) List(ctx context.Context) ([]mint.Mint, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT body FROM %s WHERE namespace = $1 ORDER BY created_at, id`, s.table),
		s.namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list mints: %w", err)
	}

	bodies, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to read mints: %w", err)
	}

	mints := make([]mint.Mint, 0, len(bodies))
	for _, body := range bodies {
		m, err := mint.UnmarshalRecord(body)
		if err != nil {
			return nil, err
		}
		mints = append(mints, m)
	}
	return mints, nil
}

// Close closes the pool if Open created it.
func (s *Store) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}

// row holds the indexed columns next to the serialized record.
type row struct {
	id        string
	kind      mint.Kind
	issuerDID string
	status    mint.Status
	createdAt int64
	expiresAt string
	body      []byte
}

func newRow(m mint.Mint) (*row, error) {
	id, err := store.IDOf(m)
	if err != nil {
		return nil, err
	}
	body, err := mint.MarshalRecord(m)
	if err != nil {
		return nil, err
	}

	b := m.Common()
	return &row{
		id:        id,
		kind:      m.Kind(),
		issuerDID: crypto.IssuerDID(m),
		status:    mint.StatusOf(m),
		createdAt: b.CreatedAt,
		expiresAt: b.ExpiresAt.String(),
		body:      body,
	}, nil
}

func (r *row) args(namespace string) []any {
	return []any{namespace, r.id, string(r.kind), r.issuerDID, string(r.status), r.createdAt, r.expiresAt, r.body}
}
