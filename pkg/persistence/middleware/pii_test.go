package middleware_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/wizard/pkg/adapters/memory"
	"github.com/aretw0/wizard/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	store := middleware.NewPIIMiddleware([]string{"password", "token"})(underlying)
	ctx := context.Background()

	value := `{"schemaVersion":1,"value":{"type":"userpass","username":"jdoe","user_password":"secret123","mounts":[{"path":"kv","token":"s.1"}]}}`
	require.NoError(t, store.Set(ctx, "wizard:component-state", value))

	raw, err := underlying.Get(ctx, "wizard:component-state")
	require.NoError(t, err)

	var doc struct {
		Value map[string]any `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, "jdoe", doc.Value["username"])
	assert.Equal(t, middleware.Mask, doc.Value["user_password"])
	mounts := doc.Value["mounts"].([]any)
	assert.Equal(t, middleware.Mask, mounts[0].(map[string]any)["token"])
	assert.Equal(t, "kv", mounts[0].(map[string]any)["path"])
}

func TestPIIMiddleware_PassThrough(t *testing.T) {
	underlying := memory.NewStore()
	store := middleware.NewPIIMiddleware([]string{"password"})(underlying)
	ctx := context.Background()

	for key, value := range map[string]string{
		"wizard:resume-url":   "/vault/secrets",
		"wizard:feature-list": `["secrets", "policies"]`,
	} {
		require.NoError(t, store.Set(ctx, key, value))
		raw, err := underlying.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, value, raw, "untouched values keep their exact encoding")
	}
}

func TestChain_Order(t *testing.T) {
	underlying := memory.NewStore()
	key := generateKey(t)
	store := middleware.Chain(underlying,
		middleware.NewPIIMiddleware([]string{"password"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", `{"password":"x"}`))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"password":"***"}`, got)
}
