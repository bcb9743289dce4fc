package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpserver "github.com/txn2/mcp-ckan/internal/server"
	"github.com/txn2/mcp-ckan/pkg/health"
	"github.com/txn2/mcp-ckan/pkg/platform"
	"github.com/txn2/mcp-ckan/pkg/portal"
	"github.com/txn2/mcp-ckan/pkg/registry"
)

func newTestPlatform(t *testing.T) *platform.Platform {
	t.Helper()
	_, p, err := mcpserver.New(platform.DefaultConfig(), platform.WithPortals(portal.New(nil, portal.Templates{})))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestVersionFlag(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "mcp-ckan version "+mcpserver.Version+"\n", out.String())
}

func TestApplyFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  transport: http\n  address: \":9000\"\nlogging:\n  level: warn\n"), 0o600))

	t.Run("config wins over flag defaults", func(t *testing.T) {
		cmd := newRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--config", path}))
		cfg, err := loadConfig(path)
		require.NoError(t, err)

		applyFlagOverrides(cmd, cfg, &serverOptions{transport: "stdio", address: ":8080", logLevel: "info"})
		assert.Equal(t, "http", cfg.Server.Transport)
		assert.Equal(t, ":9000", cfg.Server.Address)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("explicit flags win over config", func(t *testing.T) {
		cmd := newRootCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--transport", "stdio", "--log-level", "debug"}))
		cfg, err := loadConfig(path)
		require.NoError(t, err)

		applyFlagOverrides(cmd, cfg, &serverOptions{transport: "stdio", logLevel: "debug"})
		assert.Equal(t, "stdio", cfg.Server.Transport)
		assert.Equal(t, ":9000", cfg.Server.Address)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, platform.DefaultName, cfg.Server.Name)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestStartServer_UnknownTransport(t *testing.T) {
	p := newTestPlatform(t)
	p.Config().Server.Transport = "carrier-pigeon"

	err := startServer(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestHTTPHandler_HealthAndMetrics(t *testing.T) {
	p := newTestPlatform(t)
	checker := health.NewChecker()
	srv := httptest.NewServer(newHTTPHandler(p, checker))
	defer srv.Close()

	resp, err := http.Get(srv.URL + health.ReadinessPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "not ready before start")

	checker.SetReady()
	resp, err = http.Get(srv.URL + health.ReadinessPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + health.LivenessPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + platform.DefaultMetricsPath)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestChecker_NoToolkits(t *testing.T) {
	cfg := platform.DefaultConfig()
	cfg.Toolkits["ckan"] = disabled(cfg.Toolkits["ckan"])
	cfg.Toolkits["quality"] = disabled(cfg.Toolkits["quality"])
	_, p, err := mcpserver.New(cfg, platform.WithPortals(portal.New(nil, portal.Templates{})))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	checker := newChecker(p)
	checker.SetReady()

	w := httptest.NewRecorder()
	checker.ReadinessHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, health.ReadinessPath, http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "no toolkits registered")
}

func TestHTTPHandler_StreamableToolCall(t *testing.T) {
	ctx := context.Background()
	p := newTestPlatform(t)
	srv := httptest.NewServer(newHTTPHandler(p, health.NewChecker()))
	defer srv.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: srv.URL}, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "platform_info"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, `"name": "mcp-ckan"`)
}

func disabled(k registry.ToolkitKindConfig) registry.ToolkitKindConfig {
	k.Enabled = false
	return k
}
