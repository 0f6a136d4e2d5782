package client

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestInitDatabase_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "offsync.db")

	repos, err := InitDatabase(ctx, path)
	require.NoError(t, err)
	defer repos.Close()

	require.NoError(t, repos.DB.PingContext(ctx))
	for _, name := range []string{"goose_db_version", "records", "retry_queue", "metadata"} {
		require.True(t, tableExists(t, repos.DB, name), name)
	}

	require.NotNil(t, repos.Records)
	require.NotNil(t, repos.RetryQueue)
	require.NotNil(t, repos.Checkpoint)
}

func TestInitDatabase_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "offsync.db")

	first, err := InitDatabase(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := InitDatabase(ctx, path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
