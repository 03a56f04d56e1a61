package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wizard/internal/logging"
	"github.com/aretw0/wizard/pkg/adapters/memory"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machines"
	"github.com/aretw0/wizard/pkg/session"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	reg := machines.MustDefault()
	mgr := session.NewManager(reg.Tutorial(), reg, memory.NewStore())
	return NewServer(mgr, reg, "test", logging.NewNop())
}

func TestServer_DrivesTour(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	res, err := s.handleOpen(ctx, req, map[string]interface{}{"session_id": "bot"})
	require.NoError(t, err)
	assert.Equal(t, "bot", res.SessionID)
	assert.Equal(t, "idle", res.Snapshot.CurrentState.String())

	_, err = s.handleSendEvent(ctx, req, map[string]interface{}{"session_id": "bot", "event": "auth"})
	require.NoError(t, err)
	res, err = s.handleSendEvent(ctx, req, map[string]interface{}{
		"session_id": "bot",
		"event":      "CONTINUE",
		"features":   "secrets, tools",
	})
	require.NoError(t, err)
	assert.Equal(t, "secrets", res.Snapshot.CurrentFeature)
	assert.Equal(t, []string{"secrets", "tools"}, res.Snapshot.FeatureList)

	_, err = s.handleSendEvent(ctx, req, map[string]interface{}{"session_id": "bot", "event": "CONTINUE", "machine": "feature"})
	require.NoError(t, err)
	res, err = s.handleSendEvent(ctx, req, map[string]interface{}{
		"session_id": "bot",
		"event":      "CONTINUE",
		"machine":    "feature",
		"context":    `"kv"`,
	})
	require.NoError(t, err)
	assert.Equal(t, "details", res.Snapshot.FeatureState.String())
	assert.Equal(t, "kv", res.Snapshot.ComponentState)

	res, err = s.handleComplete(ctx, req, map[string]interface{}{"session_id": "bot"})
	require.NoError(t, err)
	assert.Equal(t, "tools", res.Snapshot.CurrentFeature)
	assert.Equal(t, []string{"secrets"}, res.Snapshot.CompletedFeatures)

	res, err = s.handleSnapshot(ctx, req, map[string]interface{}{"session_id": "bot"})
	require.NoError(t, err)
	assert.Equal(t, "wrap", res.Snapshot.FeatureState.String())
}

func TestServer_Errors(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleOpen(ctx, req, map[string]interface{}{})
	assert.ErrorIs(t, err, session.ErrInvalidSessionID)

	_, err = s.handleSnapshot(ctx, req, map[string]interface{}{"session_id": "ghost"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = s.handleOpen(ctx, req, map[string]interface{}{"session_id": "bot"})
	require.NoError(t, err)

	_, err = s.handleSendEvent(ctx, req, map[string]interface{}{"session_id": "bot"})
	assert.Error(t, err, "event is required")

	_, err = s.handleSendEvent(ctx, req, map[string]interface{}{"session_id": "bot", "event": "AUTH", "context": "{"})
	assert.ErrorContains(t, err, "invalid context")

	_, err = s.handleSaveFeatures(ctx, req, map[string]interface{}{"session_id": "bot", "features": "nope"})
	assert.ErrorIs(t, err, domain.ErrUnknownFeature)

	_, err = s.handleComplete(ctx, req, map[string]interface{}{"session_id": "bot"})
	assert.ErrorIs(t, err, domain.ErrNoFeatureMachine)
}

func TestServer_RestartGuide(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleOpen(ctx, req, map[string]interface{}{"session_id": "bot"})
	require.NoError(t, err)
	_, err = s.handleSaveFeatures(ctx, req, map[string]interface{}{"session_id": "bot", "features": "tools"})
	require.NoError(t, err)

	res, err := s.handleRestart(ctx, req, map[string]interface{}{"session_id": "bot"})
	require.NoError(t, err)
	assert.Empty(t, res.Snapshot.FeatureList)
	assert.Equal(t, "active.select", res.Snapshot.CurrentState.String())
}

func TestServer_MachinesResource(t *testing.T) {
	s := newServer(t)

	data, err := s.machinesJSON()
	require.NoError(t, err)

	var tables []tableInfo
	require.NoError(t, json.Unmarshal(data, &tables))
	require.NotEmpty(t, tables)
	assert.Equal(t, tableInfo{Key: "tutorial", Initial: "idle"}, tables[0])
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(nil))
	assert.Nil(t, splitList(""))
}
