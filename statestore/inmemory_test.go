package statestore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/dayplanhq/go-session-engine/statestore"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAbsenceIsNotAnError(t *testing.T) {
	store := statestore.NewMemoryStore()
	ctx := context.Background()

	value, ok, err := store.Get(ctx, statestore.ScopeTab, "missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, value)
}

func TestMemoryStoreSetGetDelete(t *testing.T) {
	store := statestore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, statestore.ScopeDevice, statestore.KeyFinalRedirect, "/dashboard"))

	value, ok, err := store.Get(ctx, statestore.ScopeDevice, statestore.KeyFinalRedirect)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "/dashboard", value)

	require.NoError(t, store.Delete(ctx, statestore.ScopeDevice, statestore.KeyFinalRedirect))

	_, ok, err = store.Get(ctx, statestore.ScopeDevice, statestore.KeyFinalRedirect)
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting again must not fail
	require.NoError(t, store.Delete(ctx, statestore.ScopeDevice, statestore.KeyFinalRedirect))
}

func TestMemoryStoreScopesAreIsolated(t *testing.T) {
	store := statestore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, statestore.ScopeTab, "k", "tab-value"))
	require.NoError(t, store.Set(ctx, statestore.ScopeDevice, "k", "device-value"))

	tabValue, ok, err := store.Get(ctx, statestore.ScopeTab, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tab-value", tabValue)

	require.NoError(t, store.ClearScope(ctx, statestore.ScopeTab))

	_, ok, err = store.Get(ctx, statestore.ScopeTab, "k")
	require.NoError(t, err)
	require.False(t, ok)

	deviceValue, ok, err := store.Get(ctx, statestore.ScopeDevice, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "device-value", deviceValue)
}

func TestMemoryStoreEmptyKeyRejected(t *testing.T) {
	store := statestore.NewMemoryStore()
	ctx := context.Background()

	require.Error(t, store.Set(ctx, statestore.ScopeTab, "", "v"))
	_, _, err := store.Get(ctx, statestore.ScopeTab, "")
	require.Error(t, err)
	require.Error(t, store.Delete(ctx, statestore.ScopeTab, ""))
}

func TestMemoryStoreConcurrentWriters(t *testing.T) {
	store := statestore.NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = store.Set(ctx, statestore.ScopeTab, statestore.KeyOrchestrationActive, "true")
				_, _, _ = store.Get(ctx, statestore.ScopeTab, statestore.KeyOrchestrationActive)
				_ = store.Delete(ctx, statestore.ScopeTab, statestore.KeyOrchestrationActive)
			}
		}()
	}
	wg.Wait()

	// Whatever interleaving happened, the store must still answer.
	_, _, err := store.Get(ctx, statestore.ScopeTab, statestore.KeyOrchestrationActive)
	require.NoError(t, err)
}
