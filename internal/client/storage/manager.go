// Package storage is the StorageManager of the client: one facade over the
// sqlite repositories, owning the database handle and the transactional
// write paths. Mutation discipline: the syncer writes folder listings here,
// the transfer layer writes download state, everything else only reads.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/okatashev/nimbus/internal/client/migrations"
	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/client/repositories/accounts"
	"github.com/okatashev/nimbus/internal/client/repositories/certs"
	"github.com/okatashev/nimbus/internal/client/repositories/files"
	"github.com/okatashev/nimbus/internal/client/repositories/metadata"
	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/dbx"
)

// Manager bundles the repositories over one database handle.
type Manager struct {
	db *sql.DB

	Files    files.Repository
	Accounts accounts.Repository
	Certs    certs.Repository
	Metadata metadata.Repository
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the client database and migrates it.
func Open(ctx context.Context, dsn string) (*Manager, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewManager(db), nil
}

// NewManager wraps an already-migrated handle. Used by tests.
func NewManager(db *sql.DB) *Manager {
	return &Manager{
		db:       db,
		Files:    files.NewSQLiteRepository(db),
		Accounts: accounts.NewSQLiteRepository(db),
		Certs:    certs.NewSQLiteRepository(db),
		Metadata: metadata.NewSQLiteRepository(db),
	}
}

func (m *Manager) Close() error {
	return m.db.Close()
}

// ApplyFolderListing atomically records the result of a successful folder
// sync: the folder's record carries the new ETag and its direct children are
// fully replaced by the server's set.
func (m *Manager) ApplyFolderListing(ctx context.Context, account, folderPath, etag string, children []models.RemoteFile) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := files.NewSQLiteRepository(tx)

		if err := m.ensureFolder(ctx, repo, account, folderPath); err != nil {
			return err
		}
		if err := repo.ReplaceChildren(ctx, account, folderPath, children); err != nil {
			return err
		}
		return repo.SetFolderETag(ctx, account, folderPath, etag)
	})
}

// ensureFolder makes sure the folder's own record exists before its children
// are attached: the root is created lazily, any other folder is expected to
// have been discovered by a sync of its parent.
func (m *Manager) ensureFolder(ctx context.Context, repo files.Repository, account, folderPath string) error {
	if folderPath == models.RootPath {
		return repo.EnsureRoot(ctx, account)
	}
	f, err := repo.GetByPath(ctx, account, folderPath)
	if errors.Is(err, common.ErrorNotFound) {
		return repo.Upsert(ctx, &models.RemoteFile{
			AccountName: account,
			RemotePath:  folderPath,
			ParentPath:  models.ParentOf(folderPath),
			Name:        models.NameOf(folderPath),
			IsFolder:    true,
		})
	}
	if err != nil {
		return err
	}
	if !f.IsFolder {
		return common.ErrNotAFolder
	}
	return nil
}

// FolderETag returns the cached version token for a folder, or "" when the
// folder has never been synced.
func (m *Manager) FolderETag(ctx context.Context, account, folderPath string) (string, error) {
	f, err := m.Files.GetByPath(ctx, account, folderPath)
	if errors.Is(err, common.ErrorNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return f.ETag, nil
}

// RemoveAccountData purges an account and everything it owns: its RemoteFile
// tree, its record, and the current-account preference if it pointed there.
func (m *Manager) RemoveAccountData(ctx context.Context, account string) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := files.NewSQLiteRepository(tx).DeleteByAccount(ctx, account); err != nil {
			return err
		}
		if err := accounts.NewSQLiteRepository(tx).Delete(ctx, account); err != nil {
			return err
		}
		meta := metadata.NewSQLiteRepository(tx)
		current, err := meta.Get(ctx, common.MetaCurrentAccount)
		if err != nil {
			return err
		}
		if string(current) == account {
			return meta.Delete(ctx, common.MetaCurrentAccount)
		}
		return nil
	})
}
