package transfer

import (
	"context"
	"io"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/client/remote"
)

// Backend moves file content between the device and wherever the account's
// content lives. The sync server's HTTP API is the default; an S3 bucket can
// serve accounts whose content is offloaded to object storage.
type Backend interface {
	// Fetch opens the content of remotePath for reading. On success the
	// caller owns the reader and must close it. The returned size is -1
	// when unknown.
	Fetch(ctx context.Context, acct *models.Account, remotePath string) (io.ReadCloser, int64, remote.Result)

	// Store writes body as the new content of remotePath.
	Store(ctx context.Context, acct *models.Account, remotePath string, body io.Reader, size int64) remote.Result
}

// httpBackend serves content through the sync server's file endpoints.
type httpBackend struct {
	remote remote.ContentRemote
}

// NewHTTPBackend wraps the server's content API as a Backend.
func NewHTTPBackend(r remote.ContentRemote) Backend {
	return &httpBackend{remote: r}
}

func (b *httpBackend) Fetch(ctx context.Context, acct *models.Account, remotePath string) (io.ReadCloser, int64, remote.Result) {
	return b.remote.OpenDownload(ctx, acct, remotePath)
}

func (b *httpBackend) Store(ctx context.Context, acct *models.Account, remotePath string, body io.Reader, size int64) remote.Result {
	return b.remote.Upload(ctx, acct, remotePath, body, size)
}
