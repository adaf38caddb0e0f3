package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/libris/library"
	"github.com/warp/libris/library/store"
	"github.com/warp/libris/store/storetest"
)

func TestMemory_Backend(t *testing.T) {
	storetest.Run(t, func(t *testing.T) library.Backend { return store.NewMemory() })
}

func TestMemory_InjectedFailures(t *testing.T) {
	m := store.NewMemoryWith(storetest.SampleState())
	ctx := context.Background()

	m.FailSaves(true)
	assert.ErrorIs(t, m.Save(ctx, library.State{}), store.ErrInjected)
	assert.ErrorIs(t, m.SaveCredential(ctx, library.Credential{}), store.ErrInjected)
	assert.Equal(t, 0, m.Saves())

	m.FailLoad(true)
	_, err := m.Load(ctx)
	assert.ErrorIs(t, err, store.ErrInjected)

	m.FailSaves(false)
	m.FailLoad(false)
	require.NoError(t, m.Save(ctx, library.State{}))
	assert.Equal(t, 1, m.Saves())
	assert.True(t, m.Saved().IsEmpty())
}
