package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/libris/library"
	"github.com/warp/libris/store/sqlite"
	"github.com/warp/libris/store/storetest"
)

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Backend(t *testing.T) {
	storetest.Run(t, func(t *testing.T) library.Backend { return newTestStore(t) })
}

func TestSQLiteStore_ReopenFile(t *testing.T) {
	// GIVEN: a database file with saved state
	path := filepath.Join(t.TempDir(), "libris.db")
	ctx := context.Background()

	first, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, storetest.SampleState()))
	gen, err := first.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// WHEN: it is opened again
	second, err := sqlite.New(path)
	require.NoError(t, err)
	defer second.Close()
	got, err := second.Load(ctx)

	// THEN: rows and generation are intact
	require.NoError(t, err)
	assert.Equal(t, storetest.Normalize(storetest.SampleState()), storetest.Normalize(got))
	again, err := second.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, gen, again)
}

func TestSQLiteStore_GenerationChangesPerSave(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gen, err := store.Generation(ctx)
	require.NoError(t, err)
	assert.Empty(t, gen)

	require.NoError(t, store.Save(ctx, storetest.SampleState()))
	g1, err := store.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, storetest.SampleState()))
	g2, err := store.Generation(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, g1)
	assert.NotEqual(t, g1, g2)
}

func TestSQLiteStore_FailedSaveKeepsPreviousRows(t *testing.T) {
	// GIVEN: saved state
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, storetest.SampleState()))

	// WHEN: a save violates the copies check halfway through
	bad := storetest.SampleState()
	bad.Books[1].AvailableCopies = bad.Books[1].TotalCopies + 1
	err := store.Save(ctx, bad)

	// THEN: the transaction rolled back, earlier rows remain
	require.Error(t, err)
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, storetest.Normalize(storetest.SampleState()), storetest.Normalize(got))
}

func TestSQLiteStore_DuplicateIDRejected(t *testing.T) {
	store := newTestStore(t)
	state := storetest.SampleState()
	state.Members = append(state.Members, state.Members[0])

	err := store.Save(context.Background(), state)

	assert.Error(t, err)
}
