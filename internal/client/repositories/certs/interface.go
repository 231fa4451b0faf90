package certs

import (
	"context"

	"github.com/okatashev/nimbus/internal/client/models"
)

// Repository persists user-accepted server certificates. The fingerprint
// (SHA-256 of the DER encoding) is the primary key.
type Repository interface {
	// Add stores a certificate; adding the same fingerprint twice is a no-op.
	Add(ctx context.Context, c *models.TrustedCert) error

	// List returns every stored certificate.
	List(ctx context.Context) ([]models.TrustedCert, error)

	// Delete removes one certificate by fingerprint.
	Delete(ctx context.Context, fingerprint string) error
}
