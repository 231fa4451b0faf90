package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, a *models.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO accounts (name, server_url, username, token, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			server_url = excluded.server_url,
			username = excluded.username,
			token = excluded.token
	`
	_, err := r.db.ExecContext(ctx, query, a.Name, a.ServerURL, a.Username, a.Token, a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", a.Name, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByName(ctx context.Context, name string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT name, server_url, username, token, created_at FROM accounts WHERE name = ?`, name)

	var a models.Account
	var created int64
	err := row.Scan(&a.Name, &a.ServerURL, &a.Username, &a.Token, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", name, err)
	}
	a.CreatedAt = time.Unix(created, 0).UTC()
	return &a, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, server_url, username, token, created_at FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var result []models.Account
	for rows.Next() {
		var a models.Account
		var created int64
		if err := rows.Scan(&a.Name, &a.ServerURL, &a.Username, &a.Token, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(created, 0).UTC()
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete account %s: %w", name, err)
	}
	return nil
}

func (r *SQLiteRepository) ClearToken(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET token = '' WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to clear token for %s: %w", name, err)
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
