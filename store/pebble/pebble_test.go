package pebble_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/libris/library"
	"github.com/warp/libris/store/pebble"
	"github.com/warp/libris/store/storetest"
)

func newTestStore(t *testing.T) *pebble.Store {
	s, err := pebble.Open(filepath.Join(t.TempDir(), "db"), pebble.WithSyncWrites(false))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPebbleStore_Backend(t *testing.T) {
	storetest.Run(t, func(t *testing.T) library.Backend { return newTestStore(t) })
}

func TestPebbleStore_ReopenSeesSavedState(t *testing.T) {
	// GIVEN: a database with one save
	path := filepath.Join(t.TempDir(), "db")
	ctx := context.Background()

	first, err := pebble.Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, storetest.SampleState()))
	require.NoError(t, first.SaveCredential(ctx, library.Credential{Username: "admin", PasswordHash: []byte("h")}))
	gen, err := first.Generation()
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// WHEN: it is reopened
	second, err := pebble.Open(path)
	require.NoError(t, err)
	defer second.Close()

	// THEN: tables, credential and generation survive
	got, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, storetest.Normalize(storetest.SampleState()), storetest.Normalize(got))

	cred, ok, err := second.LoadCredential(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "admin", cred.Username)

	again, err := second.Generation()
	require.NoError(t, err)
	assert.Equal(t, gen, again)
}

func TestPebbleStore_IDsLoadInNumericOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := storetest.SampleState()
	state.Books = append(state.Books, library.Book{ID: 1256, Title: "Late", TotalCopies: 1, AvailableCopies: 1})
	state.Books = append([]library.Book{{ID: 999, Title: "Early"}}, state.Books...)
	require.NoError(t, s.Save(ctx, state))

	got, err := s.Load(ctx)
	require.NoError(t, err)

	var ids []library.BookID
	for _, b := range got.Books {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []library.BookID{999, 1001, 1002, 1003, 1256}, ids)
}

func TestPebbleStore_ClosedStoreRejectsCalls(t *testing.T) {
	s, err := pebble.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, pebble.ErrClosed)
	assert.ErrorIs(t, s.Save(context.Background(), library.State{}), pebble.ErrClosed)
	assert.ErrorIs(t, s.Close(), pebble.ErrClosed)
}
