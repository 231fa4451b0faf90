package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/common"
)

const acct = "alice@demo"

func openManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func child(path string, folder bool, etag string) models.RemoteFile {
	return models.RemoteFile{
		AccountName: acct,
		RemotePath:  path,
		ParentPath:  models.ParentOf(path),
		Name:        models.NameOf(path),
		IsFolder:    folder,
		ETag:        etag,
	}
}

func TestOpen_RunsMigrations(t *testing.T) {
	m := openManager(t)

	// Tables exist and are usable right away.
	require.NoError(t, m.Accounts.Upsert(context.Background(), &models.Account{Name: acct}))
	require.NoError(t, m.Files.EnsureRoot(context.Background(), acct))
}

func TestApplyFolderListing_RootRoundtrip(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()

	listing := []models.RemoteFile{
		child("/Photos", true, `"p1"`),
		child("/readme.txt", false, `"r1"`),
	}
	require.NoError(t, m.ApplyFolderListing(ctx, acct, "/", `"root1"`, listing))

	etag, err := m.FolderETag(ctx, acct, "/")
	require.NoError(t, err)
	assert.Equal(t, `"root1"`, etag)

	got, err := m.Files.ListChildren(ctx, acct, "/")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestApplyFolderListing_CreatesMissingSubfolderRecord(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()

	require.NoError(t, m.ApplyFolderListing(ctx, acct, "/Photos", `"p1"`, []models.RemoteFile{
		child("/Photos/a.jpg", false, `"a"`),
	}))

	folder, err := m.Files.GetByPath(ctx, acct, "/Photos")
	require.NoError(t, err)
	assert.True(t, folder.IsFolder)
	assert.Equal(t, `"p1"`, folder.ETag)
}

func TestApplyFolderListing_RejectsFileAsFolder(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()

	f := child("/notes.txt", false, `"n"`)
	require.NoError(t, m.Files.Upsert(ctx, &f))

	err := m.ApplyFolderListing(ctx, acct, "/notes.txt", `"x"`, nil)
	assert.True(t, errors.Is(err, common.ErrNotAFolder))
}

func TestFolderETag_EmptyBeforeFirstSync(t *testing.T) {
	m := openManager(t)

	etag, err := m.FolderETag(context.Background(), acct, "/never-synced")
	require.NoError(t, err)
	assert.Equal(t, "", etag)
}

func TestRemoveAccountData_Cascades(t *testing.T) {
	m := openManager(t)
	ctx := context.Background()

	require.NoError(t, m.Accounts.Upsert(ctx, &models.Account{Name: acct}))
	require.NoError(t, m.ApplyFolderListing(ctx, acct, "/", `"r"`, []models.RemoteFile{
		child("/a.txt", false, `"a"`),
	}))
	require.NoError(t, m.Metadata.Set(ctx, common.MetaCurrentAccount, []byte(acct)))

	require.NoError(t, m.RemoveAccountData(ctx, acct))

	_, err := m.Accounts.GetByName(ctx, acct)
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	_, err = m.Files.GetByPath(ctx, acct, "/a.txt")
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	current, err := m.Metadata.Get(ctx, common.MetaCurrentAccount)
	require.NoError(t, err)
	assert.Nil(t, current, "current-account preference must be cleared")
}
