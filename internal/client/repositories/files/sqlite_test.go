package files

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/common"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  account_name TEXT NOT NULL,
  remote_path TEXT NOT NULL,
  parent_path TEXT NOT NULL,
  name TEXT NOT NULL,
  is_folder INTEGER NOT NULL DEFAULT 0,
  size INTEGER NOT NULL DEFAULT 0,
  modified_at INTEGER NOT NULL DEFAULT 0,
  etag TEXT NOT NULL DEFAULT '',
  download_state TEXT NOT NULL DEFAULT 'none',
  local_path TEXT NOT NULL DEFAULT '',
  keep_in_sync INTEGER NOT NULL DEFAULT 0,
  UNIQUE(account_name, remote_path)
);
`)
	require.NoError(t, err)
	return db
}

const acct = "alice@demo"

func fileAt(path string, folder bool, etag string) models.RemoteFile {
	return models.RemoteFile{
		AccountName: acct,
		RemotePath:  path,
		ParentPath:  models.ParentOf(path),
		Name:        models.NameOf(path),
		IsFolder:    folder,
		ETag:        etag,
		ModifiedAt:  time.Unix(1700000000, 0).UTC(),
	}
}

func TestUpsertAndGetByPath(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	f := fileAt("/Photos/trip.jpg", false, `"e1"`)
	f.Size = 2048
	require.NoError(t, r.Upsert(ctx, &f))

	got, err := r.GetByPath(ctx, acct, "/Photos/trip.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/Photos", got.ParentPath)
	assert.Equal(t, "trip.jpg", got.Name)
	assert.Equal(t, int64(2048), got.Size)
	assert.Equal(t, models.DownloadStateNone, got.DownloadState)
}

func TestGetByPath_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetByPath(context.Background(), acct, "/missing")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestListChildren_FoldersFirstThenName(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	for _, f := range []models.RemoteFile{
		fileAt("/b.txt", false, "1"),
		fileAt("/Albums", true, "2"),
		fileAt("/a.txt", false, "3"),
		fileAt("/Albums/inner.jpg", false, "4"), // not a direct child of "/"
	} {
		require.NoError(t, r.Upsert(ctx, &f))
	}

	got, err := r.ListChildren(ctx, acct, "/")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "/Albums", got[0].RemotePath)
	assert.Equal(t, "/a.txt", got[1].RemotePath)
	assert.Equal(t, "/b.txt", got[2].RemotePath)
}

func TestReplaceChildren_FullReplace(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	old := []models.RemoteFile{
		fileAt("/Photos/keep.jpg", false, `"same"`),
		fileAt("/Photos/gone.jpg", false, `"x"`),
	}
	for i := range old {
		require.NoError(t, r.Upsert(ctx, &old[i]))
	}

	next := []models.RemoteFile{
		fileAt("/Photos/keep.jpg", false, `"same"`),
		fileAt("/Photos/new.jpg", false, `"n"`),
	}
	require.NoError(t, r.ReplaceChildren(ctx, acct, "/Photos", next))

	got, err := r.ListChildren(ctx, acct, "/Photos")
	require.NoError(t, err)
	paths := make([]string, 0, len(got))
	for _, f := range got {
		paths = append(paths, f.RemotePath)
	}
	assert.ElementsMatch(t, []string{"/Photos/keep.jpg", "/Photos/new.jpg"}, paths)

	_, err = r.GetByPath(ctx, acct, "/Photos/gone.jpg")
	assert.True(t, errors.Is(err, common.ErrorNotFound), "absent children must be removed")
}

func TestReplaceChildren_PreservesLocalStateOnSameETag(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	f := fileAt("/Docs/a.txt", false, `"v1"`)
	require.NoError(t, r.Upsert(ctx, &f))
	require.NoError(t, r.SetDownloadState(ctx, acct, "/Docs/a.txt", models.DownloadStateDownloaded, "/local/a.txt"))

	// Same ETag: local copy is still current.
	require.NoError(t, r.ReplaceChildren(ctx, acct, "/Docs", []models.RemoteFile{
		fileAt("/Docs/a.txt", false, `"v1"`),
	}))
	got, err := r.GetByPath(ctx, acct, "/Docs/a.txt")
	require.NoError(t, err)
	assert.True(t, got.Downloaded())
	assert.Equal(t, "/local/a.txt", got.LocalPath)

	// Changed ETag: the local copy is stale.
	require.NoError(t, r.ReplaceChildren(ctx, acct, "/Docs", []models.RemoteFile{
		fileAt("/Docs/a.txt", false, `"v2"`),
	}))
	got, err = r.GetByPath(ctx, acct, "/Docs/a.txt")
	require.NoError(t, err)
	assert.False(t, got.Downloaded())
	assert.Equal(t, models.DownloadStateNone, got.DownloadState)
}

func TestReplaceChildren_RemovedFolderDropsSubtree(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	for _, f := range []models.RemoteFile{
		fileAt("/Photos/2024", true, "1"),
		fileAt("/Photos/2024/a.jpg", false, "2"),
		fileAt("/Photos/2024/b.jpg", false, "3"),
	} {
		require.NoError(t, r.Upsert(ctx, &f))
	}

	require.NoError(t, r.ReplaceChildren(ctx, acct, "/Photos", nil))

	for _, p := range []string{"/Photos/2024", "/Photos/2024/a.jpg", "/Photos/2024/b.jpg"} {
		_, err := r.GetByPath(ctx, acct, p)
		assert.True(t, errors.Is(err, common.ErrorNotFound), "expected %s gone", p)
	}
}

func TestSetDownloadState_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	err := r.SetDownloadState(context.Background(), acct, "/nope", models.DownloadStateDownloaded, "/x")
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestEnsureRoot_Idempotent(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.EnsureRoot(ctx, acct))
	require.NoError(t, r.EnsureRoot(ctx, acct))

	root, err := r.GetByPath(ctx, acct, models.RootPath)
	require.NoError(t, err)
	assert.True(t, root.IsFolder)
}

func TestSetFolderETag(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.EnsureRoot(ctx, acct))
	require.NoError(t, r.SetFolderETag(ctx, acct, "/", `"abc"`))

	root, err := r.GetByPath(ctx, acct, "/")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, root.ETag)
}

func TestDeleteByAccount(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	f := fileAt("/a.txt", false, "1")
	require.NoError(t, r.Upsert(ctx, &f))
	other := fileAt("/b.txt", false, "1")
	other.AccountName = "bob@demo"
	require.NoError(t, r.Upsert(ctx, &other))

	require.NoError(t, r.DeleteByAccount(ctx, acct))

	_, err := r.GetByPath(ctx, acct, "/a.txt")
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	_, err = r.GetByPath(ctx, "bob@demo", "/b.txt")
	assert.NoError(t, err, "other accounts must be untouched")
}
