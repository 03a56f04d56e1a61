package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/wizard/pkg/adapters/memory"
	"github.com/aretw0/wizard/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStorageContract(t, store)
}

func TestMemoryStore_Len(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.Remove(ctx, "a"))
	assert.Equal(t, 1, store.Len())
}
