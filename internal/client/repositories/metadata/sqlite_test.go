package metadata

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

func TestSetGetDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	got, err := r.Get(ctx, "current_account")
	require.NoError(t, err)
	assert.Nil(t, got, "absent key yields nil, not an error")

	require.NoError(t, r.Set(ctx, "current_account", []byte("alice@demo")))
	got, err = r.Get(ctx, "current_account")
	require.NoError(t, err)
	assert.Equal(t, []byte("alice@demo"), got)

	require.NoError(t, r.Set(ctx, "current_account", []byte("bob@demo")))
	got, err = r.Get(ctx, "current_account")
	require.NoError(t, err)
	assert.Equal(t, []byte("bob@demo"), got)

	require.NoError(t, r.Delete(ctx, "current_account"))
	got, err = r.Get(ctx, "current_account")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, r.Delete(ctx, "current_account"), "double delete is a no-op")
}
