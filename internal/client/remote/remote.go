package remote

import (
	"context"
	"io"

	"github.com/okatashev/nimbus/internal/client/models"
)

// Remote executes metadata operations against the server. Implementations
// never block the caller beyond the passed context and never panic; every
// failure is folded into the returned Result.
type Remote interface {
	// ListFolder fetches the direct children of folderPath. When cachedETag
	// is non-empty it is sent to the server so an unchanged folder yields
	// CodeNotModified with no payload.
	ListFolder(ctx context.Context, acct *models.Account, folderPath, cachedETag string) Result
}

// ContentRemote moves file content. Used by the transfer layer only.
type ContentRemote interface {
	// OpenDownload starts a content download. On success the caller owns
	// the reader and must close it.
	OpenDownload(ctx context.Context, acct *models.Account, remotePath string) (io.ReadCloser, int64, Result)

	// Upload stores body as the content of remotePath.
	Upload(ctx context.Context, acct *models.Account, remotePath string, body io.Reader, size int64) Result
}

// Authenticator exchanges credentials for a bearer token during login.
type Authenticator interface {
	Login(ctx context.Context, serverURL, username, password string) (string, Result)
}
