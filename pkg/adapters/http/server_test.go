package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wizard/internal/runtime"
	wizardhttp "github.com/aretw0/wizard/pkg/adapters/http"
	"github.com/aretw0/wizard/pkg/adapters/memory"
	"github.com/aretw0/wizard/pkg/machines"
	"github.com/aretw0/wizard/pkg/metrics"
	"github.com/aretw0/wizard/pkg/session"
)

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	reg := machines.MustDefault()
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	mgr := session.NewManager(reg.Tutorial(), reg, memory.NewStore(),
		session.WithControllerOptions(runtime.WithLifecycleHooks(m.Hooks())))
	return wizardhttp.NewHandler(mgr, reg,
		wizardhttp.WithVersion("1.2.3\n"),
		wizardhttp.WithMetricsHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})),
	)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) runtime.Snapshot {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snap runtime.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	return snap
}

func TestHealthAndInfo(t *testing.T) {
	h := newHandler(t)

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", "")
	assert.JSONEq(t, `{"app":"wizard-http","version":"1.2.3","api_version":"1.0.0"}`, w.Body.String())
}

func TestOpenAPISpecIsValid(t *testing.T) {
	h := newHandler(t)
	w := do(t, h, http.MethodGet, "/openapi.yaml", "")
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := openapi3.NewLoader().LoadFromData(w.Body.Bytes())
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	assert.NotNil(t, doc.Paths.Find("/sessions/{id}/tutorial"))
}

func TestSpecIsLoadedOnce(t *testing.T) {
	doc, err := wizardhttp.Spec()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", doc.Info.Version)

	again, err := wizardhttp.Spec()
	require.NoError(t, err)
	assert.Same(t, doc, again)
}

func TestStreamManager_LogsThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	sm := wizardhttp.NewStreamManager(slog.New(slog.NewTextHandler(&buf, nil)))
	_, cancel := sm.Subscribe("s1")
	defer cancel()

	for i := 0; i < 11; i++ {
		sm.Broadcast("s1", "msg")
	}
	assert.Contains(t, buf.String(), "dropping message")
	assert.Contains(t, buf.String(), "session_id=s1")
}

func TestSessionLifecycle(t *testing.T) {
	h := newHandler(t)

	w := do(t, h, http.MethodPost, "/sessions", `{"id":"s1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var opened struct {
		ID       string           `json:"id"`
		Snapshot runtime.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&opened))
	assert.Equal(t, "s1", opened.ID)
	assert.Equal(t, "idle", opened.Snapshot.CurrentState.String())

	snap := decodeSnapshot(t, do(t, h, http.MethodPost, "/sessions/s1/tutorial", `{"type":"AUTH"}`))
	assert.Equal(t, "active.select", snap.CurrentState.String())

	snap = decodeSnapshot(t, do(t, h, http.MethodPost, "/sessions/s1/tutorial", `{"type":"CONTINUE","features":["secrets"]}`))
	assert.Equal(t, "active.feature", snap.CurrentState.String())
	assert.Equal(t, "idle", snap.FeatureState.String())

	snap = decodeSnapshot(t, do(t, h, http.MethodPost, "/sessions/s1/feature", `{"type":"CONTINUE","context":"kv"}`))
	assert.Equal(t, "enable", snap.FeatureState.String())
	assert.Equal(t, "kv", snap.ComponentState)
	snap = decodeSnapshot(t, do(t, h, http.MethodPost, "/sessions/s1/feature", `{"type":"CONTINUE"}`))
	assert.Equal(t, "details", snap.FeatureState.String())

	snap = decodeSnapshot(t, do(t, h, http.MethodPost, "/sessions/s1/complete", ""))
	assert.Equal(t, "complete", snap.CurrentState.String())
	assert.Equal(t, []string{"secrets"}, snap.CompletedFeatures)

	w = do(t, h, http.MethodPost, "/sessions/s1/complete", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	snap = decodeSnapshot(t, do(t, h, http.MethodPost, "/sessions/s1/restart", ""))
	assert.Equal(t, "active.select", snap.CurrentState.String())

	w = do(t, h, http.MethodGet, "/sessions", "")
	assert.JSONEq(t, `["s1"]`, w.Body.String())

	w = do(t, h, http.MethodDelete, "/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodGet, "/sessions/s1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpenSession_GeneratesID(t *testing.T) {
	h := newHandler(t)
	w := do(t, h, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)

	var opened struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&opened))
	assert.Len(t, opened.ID, 36)
}

func TestErrors(t *testing.T) {
	h := newHandler(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/sessions", `{"id":"s2"}`).Code)
	do(t, h, http.MethodPost, "/sessions/s2/tutorial", `{"type":"AUTH"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "unknown session", method: http.MethodPost, path: "/sessions/ghost/tutorial", body: `{"type":"AUTH"}`, want: http.StatusNotFound},
		{name: "malformed body", method: http.MethodPost, path: "/sessions/s2/tutorial", body: `{`, want: http.StatusBadRequest},
		{name: "missing type", method: http.MethodPost, path: "/sessions/s2/tutorial", body: `{}`, want: http.StatusBadRequest},
		{name: "unknown feature", method: http.MethodPut, path: "/sessions/s2/features", body: `{"features":["nope"]}`, want: http.StatusBadRequest},
		{name: "empty features", method: http.MethodPut, path: "/sessions/s2/features", body: `{"features":[]}`, want: http.StatusBadRequest},
		{name: "unknown machine", method: http.MethodGet, path: "/machines/nope", want: http.StatusNotFound},
		{name: "feature graph without feature", method: http.MethodGet, path: "/sessions/s2/graph?machine=feature", want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestUnknownEventIsNotAnError(t *testing.T) {
	h := newHandler(t)
	do(t, h, http.MethodPost, "/sessions", `{"id":"s3"}`)

	snap := decodeSnapshot(t, do(t, h, http.MethodPost, "/sessions/s3/tutorial", `{"type":"WHATEVER"}`))
	assert.Equal(t, "idle", snap.CurrentState.String())
}

func TestMachines(t *testing.T) {
	h := newHandler(t)

	w := do(t, h, http.MethodGet, "/machines", "")
	var keys []string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&keys))
	assert.Equal(t, machines.TutorialKey, keys[0])
	assert.Contains(t, keys, "secrets")

	w = do(t, h, http.MethodGet, "/machines/tools", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"initial":"wrap"`)

	w = do(t, h, http.MethodGet, "/machines/tools?format=mermaid", "")
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD"))
}

func TestSessionGraph(t *testing.T) {
	h := newHandler(t)
	do(t, h, http.MethodPost, "/sessions", `{"id":"g"}`)
	do(t, h, http.MethodPost, "/sessions/g/tutorial", `{"type":"AUTH"}`)
	do(t, h, http.MethodPut, "/sessions/g/features", `{"features":["tools"]}`)

	w := do(t, h, http.MethodGet, "/sessions/g/graph", "")
	assert.Contains(t, w.Body.String(), "class active_select current;")

	w = do(t, h, http.MethodGet, "/sessions/g/graph?machine=feature", "")
	assert.Contains(t, w.Body.String(), "class wrap current;")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHandler(t)
	do(t, h, http.MethodPost, "/sessions", `{"id":"m"}`)
	do(t, h, http.MethodPost, "/sessions/m/tutorial", `{"type":"AUTH"}`)

	w := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `wizard_transitions_total{changed="true",event="AUTH",machine="tutorial"} 1`)
}

func TestSubscribeEvents(t *testing.T) {
	srv := httptest.NewServer(newHandler(t))
	defer srv.Close()
	client := srv.Client()

	resp, err := client.Post(srv.URL+"/sessions", "application/json", strings.NewReader(`{"id":"live"}`))
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/live/events", nil)
	require.NoError(t, err)
	stream, err := client.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	lines := bufio.NewScanner(stream.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	resp, err = client.Post(srv.URL+"/sessions/live/tutorial", "application/json", strings.NewReader(`{"type":"AUTH"}`))
	require.NoError(t, err)
	resp.Body.Close()

	var data string
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}
	require.NotEmpty(t, data)

	var snap runtime.Snapshot
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	assert.Equal(t, "active.select", snap.CurrentState.String())
}
