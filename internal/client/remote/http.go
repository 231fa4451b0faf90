package remote

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/logging"
)

// CertPoolSource yields the current root pool: system roots plus any
// certificates the user has accepted. The pool is re-read per request so a
// trust decision takes effect on the retry without rebuilding the client.
type CertPoolSource interface {
	Pool() *x509.CertPool
}

// HTTPClient talks to the nimbus server's JSON API. It implements Remote,
// ContentRemote and Authenticator.
type HTTPClient struct {
	pool    CertPoolSource
	timeout time.Duration
	log     logging.Logger
}

func NewHTTPClient(pool CertPoolSource, timeout time.Duration, log logging.Logger) *HTTPClient {
	return &HTTPClient{pool: pool, timeout: timeout, log: log.With("component", "remote")}
}

// client builds a fresh http.Client so the TLS root pool reflects the latest
// accepted certificates.
func (c *HTTPClient) client() *http.Client {
	var cfg *tls.Config
	if c.pool != nil {
		cfg = &tls.Config{RootCAs: c.pool.Pool()}
	}
	return &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			TLSClientConfig: cfg,
			Proxy:           http.ProxyFromEnvironment,
		},
	}
}

// wireEntry is one child in a folder listing response.
type wireEntry struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Folder   bool      `json:"folder"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	ETag     string    `json:"etag"`
}

type wireListing struct {
	ETag    string      `json:"etag"`
	Entries []wireEntry `json:"entries"`
}

type wireLogin struct {
	Token string `json:"token"`
}

func (c *HTTPClient) ListFolder(ctx context.Context, acct *models.Account, folderPath, cachedETag string) Result {
	u, err := apiURL(acct.ServerURL, "/api/folders", folderPath)
	if err != nil {
		return failure(CodeServerNotConfigured, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return failure(CodeUnknown, err)
	}
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+acct.Token)
	if cachedETag != "" {
		req.Header.Set(common.ETagHeaderName, cachedETag)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return c.classify(ctx, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fallthrough to payload parsing below
	case http.StatusNotModified:
		return ok(CodeNotModified)
	case http.StatusUnauthorized, http.StatusForbidden:
		return failure(CodeUnauthorized, common.ErrorUnauthorized)
	case http.StatusNotFound:
		return failure(CodeNotFound, common.ErrorNotFound)
	default:
		return failure(CodeUnknown, fmt.Errorf("listing %s: %s", folderPath, resp.Status))
	}

	var listing wireListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return failure(CodeUnknown, fmt.Errorf("decoding listing: %w", err))
	}

	res := ok(successCode(resp))
	res.FolderETag = listing.ETag
	res.Entries = make([]models.RemoteFile, 0, len(listing.Entries))
	for _, e := range listing.Entries {
		res.Entries = append(res.Entries, models.RemoteFile{
			AccountName: acct.Name,
			RemotePath:  e.Path,
			ParentPath:  models.ParentOf(e.Path),
			Name:        e.Name,
			IsFolder:    e.Folder,
			Size:        e.Size,
			ModifiedAt:  e.Modified,
			ETag:        e.ETag,
		})
	}
	return res
}

func (c *HTTPClient) OpenDownload(ctx context.Context, acct *models.Account, remotePath string) (io.ReadCloser, int64, Result) {
	u, err := apiURL(acct.ServerURL, "/api/files", remotePath)
	if err != nil {
		return nil, 0, failure(CodeServerNotConfigured, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, failure(CodeUnknown, err)
	}
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+acct.Token)

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, 0, c.classify(ctx, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, resp.ContentLength, ok(successCode(resp))
	case http.StatusUnauthorized, http.StatusForbidden:
		resp.Body.Close()
		return nil, 0, failure(CodeUnauthorized, common.ErrorUnauthorized)
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, 0, failure(CodeNotFound, common.ErrorNotFound)
	default:
		resp.Body.Close()
		return nil, 0, failure(CodeUnknown, fmt.Errorf("downloading %s: %s", remotePath, resp.Status))
	}
}

func (c *HTTPClient) Upload(ctx context.Context, acct *models.Account, remotePath string, body io.Reader, size int64) Result {
	u, err := apiURL(acct.ServerURL, "/api/files", remotePath)
	if err != nil {
		return failure(CodeServerNotConfigured, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, body)
	if err != nil {
		return failure(CodeUnknown, err)
	}
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+acct.Token)
	req.Header.Set("Content-Type", "application/octet-stream")
	if size >= 0 {
		req.ContentLength = size
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return c.classify(ctx, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return ok(successCode(resp))
	case http.StatusUnauthorized, http.StatusForbidden:
		return failure(CodeUnauthorized, common.ErrorUnauthorized)
	case http.StatusNotFound:
		return failure(CodeNotFound, common.ErrorNotFound)
	default:
		return failure(CodeUnknown, fmt.Errorf("uploading %s: %s", remotePath, resp.Status))
	}
}

func (c *HTTPClient) Login(ctx context.Context, serverURL, username, password string) (string, Result) {
	u, err := apiURL(serverURL, "/api/login", "")
	if err != nil {
		return "", failure(CodeServerNotConfigured, err)
	}

	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", failure(CodeUnknown, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(string(payload)))
	if err != nil {
		return "", failure(CodeUnknown, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return "", c.classify(ctx, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var lr wireLogin
		if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
			return "", failure(CodeUnknown, fmt.Errorf("decoding login response: %w", err))
		}
		return lr.Token, ok(successCode(resp))
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", failure(CodeUnauthorized, common.ErrorUnauthorized)
	default:
		return "", failure(CodeUnknown, fmt.Errorf("login: %s", resp.Status))
	}
}

// classify folds a transport error into a ResultCode. TLS verification
// failures carry the unverified chain so the trust flow can show it.
func (c *HTTPClient) classify(ctx context.Context, err error) Result {
	if ctx.Err() != nil {
		return failure(CodeCancelled, ctx.Err())
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return Result{Code: CodeUntrustedCert, Err: err, Chain: certErr.UnverifiedCertificates}
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		res := Result{Code: CodeUntrustedCert, Err: err}
		if unknownAuth.Cert != nil {
			res.Chain = []*x509.Certificate{unknownAuth.Cert}
		}
		return res
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		res := Result{Code: CodeUntrustedCert, Err: err}
		if hostnameErr.Certificate != nil {
			res.Chain = []*x509.Certificate{hostnameErr.Certificate}
		}
		return res
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failure(CodeTimeout, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var opErr *net.OpError
		var dnsErr *net.DNSError
		if errors.As(urlErr.Err, &opErr) || errors.As(urlErr.Err, &dnsErr) {
			return failure(CodeHostUnreachable, err)
		}
	}

	c.log.Debug(ctx, "unclassified transport error", "err", err)
	return failure(CodeUnknown, err)
}

// successCode distinguishes plain and TLS-protected success.
func successCode(resp *http.Response) ResultCode {
	if resp.TLS != nil {
		return CodeOKTLS
	}
	return CodeOKNoTLS
}

func apiURL(serverURL, prefix, remotePath string) (string, error) {
	if serverURL == "" {
		return "", errors.New("server url is empty")
	}
	base, err := url.Parse(serverURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("server url %q is not configured correctly", serverURL)
	}
	p := prefix
	if remotePath != "" {
		p = prefix + "/" + strings.TrimPrefix(remotePath, "/")
	}
	ref := &url.URL{Path: strings.TrimSuffix(base.Path, "/") + p}
	return base.ResolveReference(ref).String(), nil
}
