package metadata

import "context"

// Repository is a small key/value store for client-local settings such as
// the current account name and the passcode verifier.
type Repository interface {
	// Get returns the stored value, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores or replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key; deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}
