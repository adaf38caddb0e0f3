package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/libris/store"
	"github.com/warp/libris/store/storetest"
)

func TestOpen_EveryBackendRoundTrips(t *testing.T) {
	for _, name := range store.Names {
		t.Run(name, func(t *testing.T) {
			b, err := store.Open(name, t.TempDir(), nil)
			require.NoError(t, err)
			defer b.Close()
			ctx := context.Background()

			require.NoError(t, b.Save(ctx, storetest.SampleState()))
			got, err := b.Load(ctx)

			require.NoError(t, err)
			assert.Equal(t, storetest.Normalize(storetest.SampleState()), storetest.Normalize(got))
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := store.Open("mongo", t.TempDir(), nil)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestValid(t *testing.T) {
	assert.True(t, store.Valid("SQLite"))
	assert.True(t, store.Valid("file"))
	assert.False(t, store.Valid("redis"))
}
