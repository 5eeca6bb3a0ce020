package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenAddr(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return ":" + u.Port()
}

func TestRunHealthCheckSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	require.NoError(t, runHealthCheck(listenAddr(t, srv)))
}

func TestRunHealthCheckUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := runHealthCheck(listenAddr(t, srv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check returned status 503")
}

func TestRunHealthCheckConnectionError(t *testing.T) {
	err := runHealthCheck(":19")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check request failed")
}

func TestHealthURL(t *testing.T) {
	cases := map[string]string{
		":3000":          "http://localhost:3000/healthz",
		"0.0.0.0:8080":   "http://localhost:8080/healthz",
		"127.0.0.1:9000": "http://127.0.0.1:9000/healthz",
		"[::]:3000":      "http://localhost:3000/healthz",
	}
	for addr, want := range cases {
		got, err := healthURL(addr)
		require.NoError(t, err, addr)
		assert.Equal(t, want, got)
	}

	_, err := healthURL("no-port")
	assert.Error(t, err)
}

func TestVersionDefault(t *testing.T) {
	assert.Equal(t, "dev", version)
}
