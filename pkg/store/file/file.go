// Package file provides a mint store on the local filesystem, one JSON record
// per mint under <dir>/<namespace>/. Records are named by the SHA-256 of the
// mint id, so any id maps to a distinct, portable file name.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minted/minted-core/pkg/mint"
	"github.com/minted/minted-core/pkg/store"
)

const recordExt = ".json"

// Store implements store.Store using the filesystem.
// Default location: ~/.minted/<namespace>/
type Store struct {
	dir string
	mu  sync.RWMutex
}

var _ store.Store = (*Store)(nil)

// DefaultDir returns the default data directory.
func DefaultDir() string {
	if envPath := os.Getenv("MINTED_DATA_DIR"); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".minted"
	}
	return filepath.Join(home, ".minted")
}

// New creates a file store for namespace under dir.
func New(dir, namespace string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if namespace != "" {
		dir = filepath.Join(dir, sanitizeFilename(namespace))
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

// Dir returns the directory holding the records.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, recordName(id))
}

// recordName returns the file name holding id.
func recordName(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:]) + recordExt
}

// Get retrieves a mint by id.
func (s *Store) Get(_ context.Context, id string) (mint.Mint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.recordPath(id))
	if os.IsNotExist(err) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mint: %w", err)
	}

	m, err := mint.UnmarshalRecord(data)
	if err != nil {
		return nil, err
	}
	if m.Common().ID != id {
		return nil, store.ErrNotFound
	}
	return m, nil
}

// Add writes m only if no record with its id exists. The exclusive create
// also holds across processes sharing the directory.
func (s *Store) Add(_ context.Context, m mint.Mint) error {
	id, err := store.IDOf(m)
	if err != nil {
		return err
	}
	data, err := mint.MarshalRecord(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.recordPath(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create mint record: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("failed to write mint: %w", err)
	}
	return f.Close()
}

// Put writes m, replacing any existing record.
func (s *Store) Put(_ context.Context, m mint.Mint) error {
	id, err := store.IDOf(m)
	if err != nil {
		return err
	}
	data, err := mint.MarshalRecord(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write then rename so readers never see a partial record.
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write mint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write mint: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.recordPath(id)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace mint: %w", err)
	}
	return nil
}

// Delete removes a mint by id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.recordPath(id))
	if os.IsNotExist(err) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove mint: %w", err)
	}
	return nil
}

// List returns all mints in the namespace. Unreadable records are skipped.
func (s *Store) List(_ context.Context) ([]mint.Mint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	var mints []mint.Mint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != recordExt || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		m, err := mint.UnmarshalRecord(data)
		if err != nil {
			continue
		}
		mints = append(mints, m)
	}

	store.SortByCreated(mints)
	return mints, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// sanitizeFilename converts a namespace to a safe directory name.
func sanitizeFilename(id string) string {
	safe := make([]byte, 0, len(id))
	for _, c := range []byte(id) {
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '.':
			safe = append(safe, '_')
		default:
			safe = append(safe, c)
		}
	}
	return string(safe)
}
