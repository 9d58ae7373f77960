// Package storetest is a conformance suite every store.Store adapter must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minted/minted-core/pkg/mint"
	"github.com/minted/minted-core/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"AddAndGet", testAddAndGet},
		{"GetMissing", testGetMissing},
		{"DistinctIDsDoNotCollide", testDistinctIDsDoNotCollide},
		{"AddDuplicate", testAddDuplicate},
		{"AddWithoutID", testAddWithoutID},
		{"PutReplaces", testPutReplaces},
		{"Delete", testDelete},
		{"List", testList},
		{"ReturnedMintsAreCopies", testReturnedMintsAreCopies},
		{"ConcurrentAddSameID", testConcurrentAddSameID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

// Received returns a minimal collector mint with the given id.
func Received(id string, createdAt int64) *mint.ReceivedMint {
	return &mint.ReceivedMint{
		Base: mint.Base{
			SchemaVersion: mint.SchemaVersion,
			ID:            id,
			Title:         "Coffee",
			Description:   "Free coffee",
			VisualConfig:  mint.VisualConfig{Effect: mint.EffectPlastic, Color: "#aa5500"},
			Signature:     "c2ln",
			CreatedAt:     createdAt,
			ExpiresAt:     mint.NewExpiry(2030, time.January),
		},
		Status: mint.StatusActive,
	}
}

// Issued returns a minimal issuer mint with the given id.
func Issued(id string, createdAt int64) *mint.IssuerMint {
	return &mint.IssuerMint{
		Base:       Received(id, createdAt).Base,
		Status:     mint.StatusActive,
		TotalUnits: 5,
		UsedUnits:  2,
	}
}

func testAddAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, Issued("issued-1", 1)))
	require.NoError(t, s.Add(ctx, Received("received-1", 2)))

	got, err := s.Get(ctx, "issued-1")
	require.NoError(t, err)
	issued, ok := got.(*mint.IssuerMint)
	require.True(t, ok, "expected *mint.IssuerMint, got %T", got)
	assert.Equal(t, 5, issued.TotalUnits)
	assert.Equal(t, 2, issued.UsedUnits)
	assert.Equal(t, "Coffee", issued.Title)
	assert.Equal(t, mint.NewExpiry(2030, time.January), issued.ExpiresAt)

	got, err = s.Get(ctx, "received-1")
	require.NoError(t, err)
	assert.Equal(t, mint.KindReceived, got.Kind())
	assert.Equal(t, mint.StatusActive, mint.StatusOf(got))
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDistinctIDsDoNotCollide(t *testing.T, s store.Store) {
	ctx := context.Background()
	ids := []string{"shop:42", "shop_42", "shop/42", "shop.42"}

	for i, id := range ids {
		require.NoError(t, s.Add(ctx, Received(id, int64(i))), id)
	}
	for _, id := range ids {
		got, err := s.Get(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, id, got.Common().ID)
	}

	require.NoError(t, s.Delete(ctx, "shop_42"))
	_, err := s.Get(ctx, "shop:42")
	assert.NoError(t, err)

	mints, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, mints, len(ids)-1)
}

func testAddDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, Received("dup", 1)))

	second := Received("dup", 2)
	second.Title = "Tea"
	assert.ErrorIs(t, s.Add(ctx, second), store.ErrAlreadyExists)

	got, err := s.Get(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "Coffee", got.Common().Title, "the first record must be kept")
}

func testAddWithoutID(t *testing.T, s store.Store) {
	assert.ErrorIs(t, s.Add(context.Background(), Received("", 1)), store.ErrMissingID)
	assert.ErrorIs(t, s.Put(context.Background(), Received("", 1)), store.ErrMissingID)
}

func testPutReplaces(t *testing.T, s store.Store) {
	ctx := context.Background()

	m := Issued("put-1", 1)
	require.NoError(t, s.Put(ctx, m))

	m.UsedUnits = 5
	m.Status = mint.StatusRedeemed
	require.NoError(t, s.Put(ctx, m))

	got, err := s.Get(ctx, "put-1")
	require.NoError(t, err)
	assert.Equal(t, mint.StatusRedeemed, mint.StatusOf(got))
	assert.Equal(t, 5, got.(*mint.IssuerMint).UsedUnits)
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, Received("del-1", 1)))
	require.NoError(t, s.Delete(ctx, "del-1"))

	_, err := s.Get(ctx, "del-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "del-1"), store.ErrNotFound)

	// A deleted id can be added again.
	assert.NoError(t, s.Add(ctx, Received("del-1", 2)))
}

func testList(t *testing.T, s store.Store) {
	ctx := context.Background()

	empty, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.Add(ctx, Received("c", 30)))
	require.NoError(t, s.Add(ctx, Issued("a", 10)))
	require.NoError(t, s.Add(ctx, Received("b", 20)))

	mints, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, mints, 3)

	ids := make([]string, len(mints))
	for i, m := range mints {
		ids[i] = m.Common().ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, mint.KindIssuer, mints[0].Kind())
}

func testReturnedMintsAreCopies(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, Received("copy-1", 1)))

	got, err := s.Get(ctx, "copy-1")
	require.NoError(t, err)
	got.Common().Title = "changed"

	again, err := s.Get(ctx, "copy-1")
	require.NoError(t, err)
	assert.Equal(t, "Coffee", again.Common().Title)
}

func testConcurrentAddSameID(t *testing.T, s store.Store) {
	ctx := context.Background()
	const writers = 16

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		rejected atomic.Int32
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := Received("race", int64(i))
			m.Title = fmt.Sprintf("writer-%d", i)
			switch err := s.Add(ctx, m); {
			case err == nil:
				accepted.Add(1)
			case assert.ErrorIs(t, err, store.ErrAlreadyExists):
				rejected.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(writers-1), rejected.Load())

	mints, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, mints, 1)
}
