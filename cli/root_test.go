// ABOUTME: Tests for the callbridge command tree
// ABOUTME: Runs subcommands against a temporary database and cache directory
package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/callbridge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "callbridge", cmd.Use)
	assert.Contains(t, cmd.Long, "connectors")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"mcp"},
		{"connectors", "list"},
		{"connectors", "show"},
		{"users", "add"},
		{"users", "show"},
		{"users", "set"},
		{"users", "remove"},
		{"users", "proxy", "set"},
		{"notes", "put"},
		{"notes", "get"},
		{"tasks", "list"},
		{"tasks", "show"},
		{"config", "init"},
		{"config", "path"},
		{"migrate-logs"},
		{"version"},
	}

	for _, path := range commands {
		t.Run(filepath.Join(path...), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("db-path"))

	mcpCmd, _, err := cmd.Find([]string{"mcp"})
	require.NoError(t, err)
	require.NotNil(t, mcpCmd.Flags().Lookup("metrics-addr"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = NewLogger(&buf, config.LogConfig{Level: "loud", Format: "text"})
	assert.Error(t, err)
	_, err = NewLogger(&buf, config.LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

// writeTestConfig isolates a run from the host configuration and .env files.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "callbridge.db")
	cfg.Cache.Dir = filepath.Join(dir, "kv")
	cfg.Log.Level = "error"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, cfg.SaveToFile(path))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestConnectorsCommands(t *testing.T) {
	path := writeTestConfig(t)

	out, err := run(t, path, "connectors", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "PLATFORM")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "Local CRM")

	out, err = run(t, path, "connectors", "show", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "apiKey")
	assert.Contains(t, out, "createCallLog")

	_, err = run(t, path, "connectors", "show", "nope")
	assert.Error(t, err)
}

func TestUsersCommands(t *testing.T) {
	path := writeTestConfig(t)

	out, err := run(t, path, "users", "add", "u-1", "--token", "secret", "--timezone-offset", "-05:00")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved user u-1 on local")

	_, err = run(t, path, "users", "set", "u-1", "addCallLogNote", "true")
	require.NoError(t, err)

	out, err = run(t, path, "users", "show", "u-1")
	require.NoError(t, err)
	assert.Contains(t, out, "-05:00")
	assert.Contains(t, out, "Setting addCallLogNote:")
	assert.Contains(t, out, "true")

	_, err = run(t, path, "users", "remove", "u-1")
	require.NoError(t, err)
	_, err = run(t, path, "users", "show", "u-1")
	assert.Error(t, err)
}

func TestProxySetRejectsInvalidJSON(t *testing.T) {
	path := writeTestConfig(t)
	file := filepath.Join(t.TempDir(), "proxy.json")

	require.NoError(t, os.WriteFile(file, []byte(`{"platform":"acme"}`), 0600))
	_, err := run(t, path, "users", "proxy", "set", "p-1", file)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(file, []byte(`{not json`), 0600))
	_, err = run(t, path, "users", "proxy", "set", "p-1", file)
	assert.Error(t, err)
}

func TestNotesCommands(t *testing.T) {
	path := writeTestConfig(t)

	_, err := run(t, path, "notes", "put", "s-1", "call back tomorrow")
	require.NoError(t, err)

	out, err := run(t, path, "notes", "get", "s-1")
	require.NoError(t, err)
	assert.Equal(t, "call back tomorrow\n", out)

	_, err = run(t, path, "notes", "get", "s-2")
	assert.Error(t, err)
}

func TestTasksListEmpty(t *testing.T) {
	path := writeTestConfig(t)

	out, err := run(t, path, "tasks", "list")
	require.NoError(t, err)
	assert.Equal(t, "No tasks.\n", out)

	_, err = run(t, path, "tasks", "show", "missing")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "nested", "config.yaml")

	out, err := run(t, path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Processors.Subject, cfg.Processors.Subject)

	_, err = run(t, path, "config", "init")
	assert.Error(t, err)
	_, err = run(t, path, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestDBPathOverride(t *testing.T) {
	path := writeTestConfig(t)
	dbPath := filepath.Join(t.TempDir(), "other.db")

	_, err := run(t, path, "--db-path", dbPath, "users", "add", "u-2")
	require.NoError(t, err)
	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}
