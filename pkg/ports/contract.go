package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/wizard/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStorageContract runs a suite of tests to verify that a Storage implementation
// adheres to the defined interface contract.
func RunStorageContract(t *testing.T, store Storage) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405")

	t.Run("Set and Get", func(t *testing.T) {
		key := prefix + ":tutorial-state"
		require.NoError(t, store.Set(ctx, key, `{"schemaVersion":1,"value":"active.select"}`))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"schemaVersion":1,"value":"active.select"}`, got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := prefix + ":feature-state"
		require.NoError(t, store.Set(ctx, key, "idle"))
		require.NoError(t, store.Set(ctx, key, "enable"))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "enable", got)
	})

	t.Run("Empty value is not absent", func(t *testing.T) {
		key := prefix + ":empty"
		require.NoError(t, store.Set(ctx, key, ""))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, prefix+":missing")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("Remove", func(t *testing.T) {
		key := prefix + ":resume-url"
		require.NoError(t, store.Set(ctx, key, "/vault/secrets"))
		require.NoError(t, store.Remove(ctx, key))

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound, "Get after Remove should return ErrKeyNotFound")

		assert.NoError(t, store.Remove(ctx, key), "Remove of an absent key should succeed")
	})

	t.Run("List", func(t *testing.T) {
		k1 := prefix + ":feature-list"
		k2 := prefix + ":completed-features"
		require.NoError(t, store.Set(ctx, k1, `["secrets"]`))
		require.NoError(t, store.Set(ctx, k2, `[]`))
		defer func() {
			_ = store.Remove(ctx, k1)
			_ = store.Remove(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}
