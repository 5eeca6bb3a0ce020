package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enterprise-skillhub/skillhub/internal/router"
)

func testConfig() Config {
	return Config{
		ListenAddr:          ":0",
		LogLevel:            "error",
		ProviderTimeoutSecs: 5,
		CallTimeoutSecs:     10,
		IdempotencyTTLSecs:  60,
	}
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	srv, err := NewServer(context.Background(), cfg, "test")
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		assert.NoError(t, srv.Close(context.Background()))
	})
	return ts
}

func TestServerDefaultsServePlaceholders(t *testing.T) {
	ts := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/v1/llm/call", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res router.CallResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, router.KindAnthropic, res.ProviderID)
	assert.Equal(t, "claude-sonnet-4", res.Model)
	assert.Equal(t, "[Anthropic response placeholder]", res.Content)
}

func TestServerRelaysThroughConfiguredBaseURL(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/relay", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":"relayed","usage":{"total_tokens":9}}`))
	}))
	defer relay.Close()

	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - provider: ollama\n    priority: 1\n    base_url: "+relay.URL+"\n"), 0o600))

	cfg := testConfig()
	cfg.ProvidersFile = path
	ts := newTestServer(t, cfg)

	resp, err := http.Post(ts.URL+"/api/v1/llm/call", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res router.CallResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "relayed", res.Content)
	assert.Equal(t, "llama-3.1", res.Model)
}

func TestServerSQLiteSessions(t *testing.T) {
	cfg := testConfig()
	cfg.DBDSN = "file:" + filepath.Join(t.TempDir(), "sessions.db")
	ts := newTestServer(t, cfg)

	resp, err := http.Post(ts.URL+"/api/v1/sessions", "application/json", strings.NewReader(`{"title":"persisted"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v1/sessions/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var st struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 1, st.Total)
}

func TestServerCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.CORSOrigins = []string{"https://console.example"}
	ts := newTestServer(t, cfg)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/llm/call", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://console.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "https://console.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServerStartsWithEmptyProvidersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers: []\n"), 0o600))
	cfg := testConfig()
	cfg.ProvidersFile = path
	ts := newTestServer(t, cfg)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/v1/llm/call", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNewServerRejectsBadProvidersFile(t *testing.T) {
	cfg := testConfig()
	cfg.ProvidersFile = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := NewServer(context.Background(), cfg, "test")
	assert.Error(t, err)
}
