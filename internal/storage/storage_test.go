package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/minted/minted-core/internal/config"
	"github.com/minted/minted-core/pkg/store"
	"github.com/minted/minted-core/pkg/store/file"
	"github.com/minted/minted-core/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.Storage{Driver: config.DriverMemory}, store.NamespaceIssuer)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)

	dir := t.TempDir()
	s, err = Open(ctx, config.Storage{Driver: config.DriverFile, Dir: dir}, store.NamespaceCollection)
	require.NoError(t, err)
	require.IsType(t, &file.Store{}, s)
	assert.Equal(t, filepath.Join(dir, "collection"), s.(*file.Store).Dir())

	_, err = Open(ctx, config.Storage{Driver: "mongo"}, store.NamespaceIssuer)
	assert.Error(t, err)
}
