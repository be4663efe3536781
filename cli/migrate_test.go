// ABOUTME: Tests for copying log mappings between backends
// ABOUTME: Uses two private SQLite databases as source and target
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/harperreed/callbridge/db"
	"github.com/harperreed/callbridge/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateLogs(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	src, err := db.OpenMemory()
	require.NoError(t, err)
	defer src.Close()
	dst, err := db.OpenMemory()
	require.NoError(t, err)
	defer dst.Close()

	srcCalls, srcMessages := db.NewCallLogRepository(src), db.NewMessageLogRepository(src)
	dstCalls, dstMessages := db.NewCallLogRepository(dst), db.NewMessageLogRepository(dst)

	require.NoError(t, srcCalls.Create(ctx, &models.CallLogRecord{SessionID: "s1", Platform: "local", ThirdPartyLogID: "a", UserID: "u1"}))
	require.NoError(t, srcCalls.Create(ctx, &models.CallLogRecord{SessionID: "s2", Platform: "local", ThirdPartyLogID: "b", UserID: "u1"}))
	require.NoError(t, srcMessages.Create(ctx, &models.MessageLogRecord{ID: "m1", Platform: "local", ThirdPartyLogID: "x", UserID: "u1"}))
	require.NoError(t, dstCalls.Create(ctx, &models.CallLogRecord{SessionID: "s2", Platform: "local", ThirdPartyLogID: "b", UserID: "u1"}))

	dry, err := MigrateLogs(ctx, logger, srcCalls, srcMessages, dstCalls, dstMessages, true)
	require.NoError(t, err)
	assert.Equal(t, &MigrationReport{CallLogs: 2, MessageLogs: 1}, dry)
	missing, err := dstCalls.FindBySessionID(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	report, err := MigrateLogs(ctx, logger, srcCalls, srcMessages, dstCalls, dstMessages, false)
	require.NoError(t, err)
	assert.Equal(t, &MigrationReport{CallLogs: 1, MessageLogs: 1, Skipped: 1}, report)

	copied, err := dstCalls.FindBySessionID(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, copied)
	assert.Equal(t, "a", copied.ThirdPartyLogID)

	again, err := MigrateLogs(ctx, logger, srcCalls, srcMessages, dstCalls, dstMessages, false)
	require.NoError(t, err)
	assert.Equal(t, &MigrationReport{Skipped: 3}, again)
}

func TestMigrateCommandRequiresPostgres(t *testing.T) {
	path := writeTestConfig(t)
	_, err := run(t, path, "migrate-logs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres_dsn")
}

func TestBackupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callbridge.db")
	require.NoError(t, os.WriteFile(path, []byte("sqlite"), 0600))

	backup, err := backupFile(path)
	require.NoError(t, err)
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", string(data))

	_, err = backupFile(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}
