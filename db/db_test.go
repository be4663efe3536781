// ABOUTME: Tests for database connection management
// ABOUTME: Verifies file creation, WAL mode, re-initialization and constraint mapping
package db

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "callbridge.db")

	db, err := OpenDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	require.NoError(t, err, "database file was not created")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count))
	assert.GreaterOrEqual(t, count, 6)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenDatabaseInvalidPath(t *testing.T) {
	_, err := OpenDatabase("/invalid/nonexistent/path/that/cannot/be/created/test.db")
	assert.Error(t, err)
}

func TestOpenDatabaseTwice(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenDatabase(dbPath)
	require.NoError(t, err)
	db.Close()

	db, err = OpenDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count))
	assert.GreaterOrEqual(t, count, 6)
}

func TestUniqueViolationMapping(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Exec(`INSERT INTO proxy_configs (id, config, created_at, updated_at) VALUES ('p1', '{}', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO proxy_configs (id, config, created_at, updated_at) VALUES ('p1', '{}', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	require.Error(t, err)

	assert.True(t, isUniqueViolation(err))
	assert.ErrorIs(t, wrapInsert("proxy config", err), ErrDuplicate)
	assert.False(t, isUniqueViolation(errors.New("other")))
	assert.NoError(t, wrapInsert("proxy config", nil))
}
