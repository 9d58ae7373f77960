package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyTable_Bijection(t *testing.T) {
	table := Keys()
	assert.Len(t, table.short, len(longToShort))

	for long, short := range longToShort {
		gotShort, ok := table.Short(long)
		require.True(t, ok, long)
		assert.Equal(t, short, gotShort)

		gotLong, ok := table.Long(short)
		require.True(t, ok, short)
		assert.Equal(t, long, gotLong)

		assert.True(t, table.IsShort(short))
		assert.False(t, table.IsShort(long))
	}

	_, ok := table.Short("unknownField")
	assert.False(t, ok)
	_, ok = table.Long("z")
	assert.False(t, ok)
}

func TestNewKeyTable_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mapping map[string]string
	}{
		{"duplicate short key", map[string]string{"title": "t", "type": "t"}},
		{"short key equals long key", map[string]string{"a": "b", "b": "c"}},
		{"empty short key", map[string]string{"title": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKeyTable(tt.mapping)
			assert.Error(t, err)
		})
	}
}

func TestMustKeyTable_Panics(t *testing.T) {
	assert.Panics(t, func() {
		mustKeyTable(map[string]string{"title": "t", "type": "t"})
	})
}
