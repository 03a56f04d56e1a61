package cli

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wizard/internal/config"
	"github.com/aretw0/wizard/pkg/domain"
)

func newKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func setup(t *testing.T, cfg config.Config) *Environment {
	t.Helper()
	env, err := Setup(context.Background(), cfg, SetupOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func TestSetup_Memory(t *testing.T) {
	env := setup(t, config.Default())
	ctx := context.Background()

	snap, err := env.Sessions.Open(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "idle", snap.CurrentState.String())

	keys, err := env.Storage.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "wizard:alice:tutorial-state")
}

func TestSetup_FileResumesAcrossProcesses(t *testing.T) {
	cfg := config.Default()
	cfg.Store = config.StoreFile
	cfg.File.Dir = t.TempDir()
	ctx := context.Background()

	first := setup(t, cfg)
	_, err := first.Sessions.Open(ctx, "alice")
	require.NoError(t, err)
	_, err = first.Sessions.SendTutorial(ctx, "alice", domain.NewEvent(domain.EventAuth), nil)
	require.NoError(t, err)

	second := setup(t, cfg)
	snap, err := second.Sessions.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.Sessions.Keys("alice"), second.Sessions.Keys("alice"))
	assert.NotEqual(t, "idle", snap.CurrentState.String())
}

func TestSetup_RedisWithEncryption(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Store = config.StoreRedis
	cfg.Redis.Addr = mr.Addr()
	cfg.Encryption.Key = newKey(t)

	env := setup(t, cfg)
	ctx := context.Background()
	_, err := env.Sessions.Open(ctx, "alice")
	require.NoError(t, err)

	raw, err := mr.Get("wizard:storage:kv:wizard:alice:tutorial-state")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "enc:v1:"), "value is encrypted at rest")

	snap, err := env.Sessions.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "idle", snap.CurrentState.String())

	assert.False(t, mr.Exists("wizard:lock:alice"), "lock released after the call")
}

func TestSetup_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Store = config.StoreRedis
	cfg.Redis.Addr = addr

	_, err := Setup(context.Background(), cfg, SetupOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestSetup_RedactsComponentState(t *testing.T) {
	cfg := config.Default()
	cfg.Redact = []string{"(?i)token"}
	env := setup(t, cfg)
	ctx := context.Background()

	_, err := env.Sessions.Open(ctx, "alice")
	require.NoError(t, err)
	_, err = env.Sessions.SendTutorial(ctx, "alice", domain.NewEvent("NOPE"), map[string]any{"token": "s.abc", "path": "kv"})
	require.NoError(t, err)

	raw, err := env.Storage.Get(ctx, env.Sessions.Keys("alice").ComponentState)
	require.NoError(t, err)
	assert.NotContains(t, raw, "s.abc")
	assert.Contains(t, raw, `"path":"kv"`)
}

func TestSetup_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store = "etcd"

	_, err := Setup(context.Background(), cfg, SetupOptions{})
	require.Error(t, err)
}

func TestSetup_MachinesDir(t *testing.T) {
	cfg := config.Default()
	cfg.Machines.Dir = t.TempDir()

	_, err := Setup(context.Background(), cfg, SetupOptions{})
	require.Error(t, err, "a directory without tutorial.yaml is rejected")
}

func TestLoadMachines_ComponentsOverrideCatalog(t *testing.T) {
	dir := t.TempDir()
	doc := "---\ncomponent: wizard/tutorial-idle\ntitle: Welcome aboard\n---\nSign in to start the tour."
	require.NoError(t, os.WriteFile(filepath.Join(dir, "idle.md"), []byte(doc), 0644))

	cfg := config.Default()
	cfg.Machines.Components = dir
	reg, err := LoadMachines(cfg)
	require.NoError(t, err)

	text, ok := reg.Component("wizard/tutorial-idle")
	require.True(t, ok)
	assert.Equal(t, "### Welcome aboard\n\nSign in to start the tour.", text)

	_, ok = reg.Component("wizard/tutorial-active")
	assert.True(t, ok, "bundled copy is kept")
}
