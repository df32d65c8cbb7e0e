package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesDirectoryAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "events.db")

	db, err := Open(Config{Path: path, Name: "events"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "events", db.Name())
}

func TestDB_ExecAndQuery(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Config{Path: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, val TEXT)")
	require.NoError(t, err)

	_, err = db.Exec(ctx, "INSERT INTO t (val) VALUES (?)", "hello")
	require.NoError(t, err)

	rows, err := db.Query(ctx, "SELECT val FROM t")
	require.NoError(t, err)
	defer rows.Close()

	var got string
	require.True(t, rows.Next())
	require.NoError(t, rows.Scan(&got))
	assert.Equal(t, "hello", got)
}

func TestDB_HealthCheck(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Config{Path: filepath.Join(dir, "health.db")})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestOpen_AppendOnlyProfileLimitsPool(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(Config{Path: filepath.Join(dir, "ledger.db"), Profile: ProfileAppendOnly})
	require.NoError(t, err)
	defer db.Close()

	stats := db.conn.Stats()
	assert.LessOrEqual(t, stats.MaxOpenConnections, 1)
}
