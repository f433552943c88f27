package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docrag/internal/document"
	httpserver "github.com/fyrsmithlabs/docrag/internal/http"
)

func TestHealth(t *testing.T) {
	daemon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(httpserver.HealthResponse{
			Status:    "ok",
			Documents: 3,
			Providers: document.ProviderSelection{Embedding: "local", Generation: "gemini", Model: "gemini-2.0-flash"},
		})
	}))
	defer daemon.Close()

	out, err := execute(t, "health", "--server", daemon.URL)
	require.NoError(t, err, out)
	assert.Contains(t, out, "documents")
	assert.Contains(t, out, "3")
	assert.Contains(t, out, "gemini gemini-2.0-flash")

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"store unavailable"}}`, http.StatusServiceUnavailable)
	}))
	defer down.Close()

	_, err = execute(t, "health", "--server", down.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
}

func TestInit_WritesConfigOnly(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Cleanup(func() { skipRuntime, forceInit = false, false })

	out, err := execute(t, "init", "--no-runtime")
	require.NoError(t, err, out)
	path := filepath.Join(home, ".config", "docrag", "config.yaml")
	assert.Contains(t, out, "Wrote starter config to "+path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	out, err = execute(t, "init", "--no-runtime")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Keeping existing config")
}
