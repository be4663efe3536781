// ABOUTME: Tests for the MCP server registration
// ABOUTME: Connects an in-memory client to a fully wired App
package cli

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/harperreed/callbridge/config"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "callbridge.db")
	cfg.Cache.InMemory = true

	app, err := NewApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func connectClient(t *testing.T, app *App) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	server := NewMCPServer(app.Deps(), app.Pipeline, app.CallLogs)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestNewAppWiresLocalConnector(t *testing.T) {
	app := newTestApp(t)
	assert.Equal(t, []string{"local"}, app.Registry.Platforms())

	deps := app.Deps()
	assert.NotNil(t, deps.Auth)
	assert.NotNil(t, deps.Notes)
	assert.Equal(t, app.cfg.Handlers.MediaReaderURL, deps.Options.MediaReaderURL)
}

func TestMCPServerListsTools(t *testing.T) {
	session := connectClient(t, newTestApp(t))
	ctx := context.Background()

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"connector_capabilities",
		"create_call_log",
		"create_contact",
		"create_message_log",
		"find_contact",
		"get_call_log",
		"processor_task",
		"unauthorize",
		"update_call_log",
	}, names)

	prompts, err := session.ListPrompts(ctx, &mcp.ListPromptsParams{})
	require.NoError(t, err)
	require.Len(t, prompts.Prompts, 1)
	assert.Equal(t, "call-follow-up", prompts.Prompts[0].Name)

	templates, err := session.ListResourceTemplates(ctx, &mcp.ListResourceTemplatesParams{})
	require.NoError(t, err)
	assert.Len(t, templates.ResourceTemplates, 2)
}

func TestMCPServerCallsTools(t *testing.T) {
	session := connectClient(t, newTestApp(t))
	ctx := context.Background()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "connector_capabilities",
		Arguments: map[string]any{"platform": "local"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	read, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "callbridge://connectors"})
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	assert.Contains(t, read.Contents[0].Text, "local")
}

func TestMetricsServer(t *testing.T) {
	app := newTestApp(t)
	app.Metrics.RemoteError("local", 429)

	srv := httptest.NewServer(newMetricsServer(":0", app.Metrics.Handler()).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `platform="local"`)

	notFound, err := http.Get(srv.URL + "/other")
	require.NoError(t, err)
	notFound.Body.Close()
	assert.Equal(t, http.StatusNotFound, notFound.StatusCode)
}
