package certs

import (
	"context"
	"fmt"
	"time"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Add(ctx context.Context, c *models.TrustedCert) error {
	if c.AddedAt == 0 {
		c.AddedAt = time.Now().Unix()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trusted_certs (fingerprint, pem, added_at) VALUES (?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, c.Fingerprint, c.PEM, c.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to add trusted cert: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.TrustedCert, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT fingerprint, pem, added_at FROM trusted_certs`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted certs: %w", err)
	}
	defer rows.Close()

	var result []models.TrustedCert
	for rows.Next() {
		var c models.TrustedCert
		if err := rows.Scan(&c.Fingerprint, &c.PEM, &c.AddedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, fingerprint string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM trusted_certs WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete trusted cert: %w", err)
	}
	return nil
}
