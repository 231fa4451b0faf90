package accounts

import (
	"context"

	"github.com/okatashev/nimbus/internal/client/models"
)

// Repository persists the accounts known to this device.
type Repository interface {
	// Upsert inserts an account or updates its server URL, username and token.
	Upsert(ctx context.Context, a *models.Account) error

	// GetByName returns one account, or common.ErrorNotFound.
	GetByName(ctx context.Context, name string) (*models.Account, error)

	// List returns all accounts ordered by name.
	List(ctx context.Context) ([]models.Account, error)

	// Delete removes the account record.
	Delete(ctx context.Context, name string) error

	// ClearToken invalidates stored credentials without removing the account.
	ClearToken(ctx context.Context, name string) error
}
