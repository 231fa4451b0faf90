// Package remote defines the interface to the sync server: one operation per
// network call, each returning a Result with a flat result-code taxonomy.
// The syncer and transfer layers depend only on the interfaces here; the
// HTTP implementation lives in http.go.
package remote

import (
	"crypto/x509"

	"github.com/okatashev/nimbus/internal/client/models"
)

// ResultCode classifies the outcome of a remote operation. The set is flat,
// not hierarchical; callers switch on the code rather than unwrap errors.
type ResultCode string

const (
	CodeOK                  ResultCode = "ok"
	CodeOKNoTLS             ResultCode = "ok_no_tls"
	CodeOKTLS               ResultCode = "ok_tls"
	CodeNotModified         ResultCode = "not_modified"
	CodeUnauthorized        ResultCode = "unauthorized"
	CodeUntrustedCert       ResultCode = "untrusted_certificate"
	CodeHostUnreachable     ResultCode = "host_unreachable"
	CodeTimeout             ResultCode = "timeout"
	CodeNotFound            ResultCode = "not_found"
	CodeServerNotConfigured ResultCode = "server_not_configured"
	CodeCancelled           ResultCode = "cancelled"
	CodeUnknown             ResultCode = "unknown_error"
)

// IsSuccess reports whether the code is one of the OK variants.
func (c ResultCode) IsSuccess() bool {
	return c == CodeOK || c == CodeOKTLS || c == CodeOKNoTLS
}

// Result is the terminal outcome of one remote operation.
type Result struct {
	Code ResultCode
	// Err is the causal error, if any. Always nil on success.
	Err error

	// FolderETag and Entries carry the listing payload of a successful
	// ListFolder call: the folder's own version token and its direct
	// children as reported by the server.
	FolderETag string
	Entries    []models.RemoteFile

	// Chain carries the unverified certificate chain when Code is
	// CodeUntrustedCert, so the trust layer can present it to the user.
	Chain []*x509.Certificate
}

// IsSuccess reports whether the operation succeeded.
func (r Result) IsSuccess() bool { return r.Code.IsSuccess() }

func ok(code ResultCode) Result { return Result{Code: code} }

func failure(code ResultCode, err error) Result { return Result{Code: code, Err: err} }
