package files

import (
	"context"

	"github.com/okatashev/nimbus/internal/client/models"
)

// Repository describes persistence for RemoteFile records. Implementations
// are backed by the local SQLite database. A file is identified by
// (account name, remote path).
type Repository interface {
	// Upsert inserts or updates a single record by (account, remote path).
	Upsert(ctx context.Context, f *models.RemoteFile) error

	// GetByPath returns one record, or common.ErrorNotFound.
	GetByPath(ctx context.Context, account, remotePath string) (*models.RemoteFile, error)

	// ListChildren returns the direct children of folderPath, folders first,
	// then by name.
	ListChildren(ctx context.Context, account, folderPath string) ([]models.RemoteFile, error)

	// ReplaceChildren makes the stored direct children of folderPath exactly
	// match children: records absent from the new set are deleted, the rest
	// are inserted or updated. Local download state survives for entries
	// whose ETag is unchanged. Callers needing atomicity run this inside a
	// transaction via dbx.WithTx.
	ReplaceChildren(ctx context.Context, account, folderPath string, children []models.RemoteFile) error

	// SetDownloadState updates the local content state of one file.
	SetDownloadState(ctx context.Context, account, remotePath string, state models.DownloadState, localPath string) error

	// SetFolderETag records the folder's own version token after a sync.
	SetFolderETag(ctx context.Context, account, folderPath, etag string) error

	// EnsureRoot creates the account's root folder record if missing.
	EnsureRoot(ctx context.Context, account string) error

	// DeleteByAccount removes the account's whole tree.
	DeleteByAccount(ctx context.Context, account string) error
}
