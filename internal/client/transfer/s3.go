package transfer

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/client/remote"
)

// s3Backend serves content from an S3 bucket. Objects are keyed by account
// name plus remote path, mirroring the server's layout for offloaded content.
type s3Backend struct {
	client *s3.Client
	bucket string
}

// NewS3Backend returns a Backend reading and writing objects in bucket.
func NewS3Backend(client *s3.Client, bucket string) Backend {
	return &s3Backend{client: client, bucket: bucket}
}

func objectKey(acct *models.Account, remotePath string) string {
	return path.Join(acct.Name, strings.TrimPrefix(remotePath, "/"))
}

func (b *s3Backend) Fetch(ctx context.Context, acct *models.Account, remotePath string) (io.ReadCloser, int64, remote.Result) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey(acct, remotePath)),
	})
	if err != nil {
		return nil, 0, classifyS3(ctx, err)
	}
	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return out.Body, size, remote.Result{Code: remote.CodeOKTLS}
}

func (b *s3Backend) Store(ctx context.Context, acct *models.Account, remotePath string, body io.Reader, size int64) remote.Result {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(objectKey(acct, remotePath)),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return classifyS3(ctx, err)
	}
	return remote.Result{Code: remote.CodeOKTLS}
}

func classifyS3(ctx context.Context, err error) remote.Result {
	if ctx.Err() != nil {
		return remote.Result{Code: remote.CodeCancelled, Err: ctx.Err()}
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return remote.Result{Code: remote.CodeNotFound, Err: err}
	}
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return remote.Result{Code: remote.CodeServerNotConfigured, Err: err}
	}
	return remote.Result{Code: remote.CodeUnknown, Err: err}
}
