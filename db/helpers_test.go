// ABOUTME: Shared test helpers for the db package
// ABOUTME: Provides a fresh in-memory database per test
package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
