package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const fileColumns = `id, account_name, remote_path, parent_path, name, is_folder,
	size, modified_at, etag, download_state, local_path, keep_in_sync`

func scanFile(row interface{ Scan(...any) error }) (*models.RemoteFile, error) {
	var f models.RemoteFile
	var isFolder, keepInSync int
	var modified int64
	var state string
	err := row.Scan(&f.ID, &f.AccountName, &f.RemotePath, &f.ParentPath, &f.Name,
		&isFolder, &f.Size, &modified, &f.ETag, &state, &f.LocalPath, &keepInSync)
	if err != nil {
		return nil, err
	}
	f.IsFolder = isFolder != 0
	f.KeepInSync = keepInSync != 0
	f.ModifiedAt = time.Unix(modified, 0).UTC()
	f.DownloadState = models.DownloadState(state)
	return &f, nil
}

// Upsert inserts or updates a record by (account, remote path). On conflict
// the server-side fields are replaced; local download state is kept.
func (r *SQLiteRepository) Upsert(ctx context.Context, f *models.RemoteFile) error {
	query := `INSERT INTO files
			(account_name, remote_path, parent_path, name, is_folder, size,
			 modified_at, etag, download_state, local_path, keep_in_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_name, remote_path) DO UPDATE SET
			parent_path = excluded.parent_path,
			name = excluded.name,
			is_folder = excluded.is_folder,
			size = excluded.size,
			modified_at = excluded.modified_at,
			etag = excluded.etag
	`
	_, err := r.db.ExecContext(ctx, query,
		f.AccountName, f.RemotePath, f.ParentPath, f.Name, boolInt(f.IsFolder), f.Size,
		f.ModifiedAt.Unix(), f.ETag, string(stateOrNone(f.DownloadState)), f.LocalPath,
		boolInt(f.KeepInSync))
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByPath(ctx context.Context, account, remotePath string) (*models.RemoteFile, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE account_name = ? AND remote_path = ?`
	f, err := scanFile(r.db.QueryRowContext(ctx, query, account, remotePath))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", remotePath, err)
	}
	return f, nil
}

func (r *SQLiteRepository) ListChildren(ctx context.Context, account, folderPath string) ([]models.RemoteFile, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE account_name = ? AND parent_path = ? AND remote_path <> ?
		ORDER BY is_folder DESC, name COLLATE NOCASE`
	rows, err := r.db.QueryContext(ctx, query, account, normalizeFolder(folderPath), models.RootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", folderPath, err)
	}
	defer rows.Close()

	var result []models.RemoteFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceChildren applies full-replace semantics for one folder: after the
// call the stored direct children are exactly the given set. Download state
// and local path survive only for paths whose ETag did not change; a file
// changed on the server goes back to "none" since the local copy is stale.
func (r *SQLiteRepository) ReplaceChildren(ctx context.Context, account, folderPath string, children []models.RemoteFile) error {
	folderPath = normalizeFolder(folderPath)

	existing, err := r.ListChildren(ctx, account, folderPath)
	if err != nil {
		return err
	}
	prior := make(map[string]models.RemoteFile, len(existing))
	for _, f := range existing {
		prior[f.RemotePath] = f
	}

	keep := make(map[string]struct{}, len(children))
	for i := range children {
		c := &children[i]
		keep[c.RemotePath] = struct{}{}

		if old, ok := prior[c.RemotePath]; ok && old.ETag == c.ETag {
			c.DownloadState = old.DownloadState
			c.LocalPath = old.LocalPath
			c.KeepInSync = old.KeepInSync
		}
		if err := r.upsertFull(ctx, c); err != nil {
			return err
		}
	}

	for path := range prior {
		if _, ok := keep[path]; ok {
			continue
		}
		if err := r.deleteSubtree(ctx, account, path); err != nil {
			return err
		}
	}
	return nil
}

// upsertFull replaces every column, including local state, used when the
// caller has already decided what local state to carry over.
func (r *SQLiteRepository) upsertFull(ctx context.Context, f *models.RemoteFile) error {
	query := `INSERT INTO files
			(account_name, remote_path, parent_path, name, is_folder, size,
			 modified_at, etag, download_state, local_path, keep_in_sync)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_name, remote_path) DO UPDATE SET
			parent_path = excluded.parent_path,
			name = excluded.name,
			is_folder = excluded.is_folder,
			size = excluded.size,
			modified_at = excluded.modified_at,
			etag = excluded.etag,
			download_state = excluded.download_state,
			local_path = excluded.local_path,
			keep_in_sync = excluded.keep_in_sync
	`
	_, err := r.db.ExecContext(ctx, query,
		f.AccountName, f.RemotePath, f.ParentPath, f.Name, boolInt(f.IsFolder), f.Size,
		f.ModifiedAt.Unix(), f.ETag, string(stateOrNone(f.DownloadState)), f.LocalPath,
		boolInt(f.KeepInSync))
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	return nil
}

// deleteSubtree removes a record and, for folders, everything below it.
func (r *SQLiteRepository) deleteSubtree(ctx context.Context, account, remotePath string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM files WHERE account_name = ? AND (remote_path = ? OR remote_path LIKE ? ESCAPE '\')`,
		account, remotePath, escapeLike(remotePath)+"/%")
	if err != nil {
		return fmt.Errorf("failed to delete subtree %s: %w", remotePath, err)
	}
	return nil
}

func (r *SQLiteRepository) SetDownloadState(ctx context.Context, account, remotePath string, state models.DownloadState, localPath string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE files SET download_state = ?, local_path = ? WHERE account_name = ? AND remote_path = ?`,
		string(state), localPath, account, remotePath)
	if err != nil {
		return fmt.Errorf("failed to set download state for %s: %w", remotePath, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) SetFolderETag(ctx context.Context, account, folderPath, etag string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE files SET etag = ? WHERE account_name = ? AND remote_path = ? AND is_folder = 1`,
		etag, account, normalizeFolder(folderPath))
	if err != nil {
		return fmt.Errorf("failed to set folder etag for %s: %w", folderPath, err)
	}
	return nil
}

func (r *SQLiteRepository) EnsureRoot(ctx context.Context, account string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO files
			(account_name, remote_path, parent_path, name, is_folder, size,
			 modified_at, etag, download_state, local_path, keep_in_sync)
		VALUES (?, ?, ?, ?, 1, 0, 0, '', 'none', '', 0)
		ON CONFLICT(account_name, remote_path) DO NOTHING`,
		account, models.RootPath, models.RootPath, models.RootPath)
	if err != nil {
		return fmt.Errorf("failed to ensure root for %s: %w", account, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByAccount(ctx context.Context, account string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE account_name = ?`, account)
	if err != nil {
		return fmt.Errorf("failed to delete files of %s: %w", account, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func stateOrNone(s models.DownloadState) models.DownloadState {
	if s == "" {
		return models.DownloadStateNone
	}
	return s
}

func normalizeFolder(p string) string {
	if p == "" {
		return models.RootPath
	}
	if p != models.RootPath {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
