package remote

import (
	"context"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/logging"
)

type staticPool struct{ p *x509.CertPool }

func (s staticPool) Pool() *x509.CertPool { return s.p }

func testAccount(serverURL string) *models.Account {
	return &models.Account{
		Name:      "alice@demo",
		ServerURL: serverURL,
		Username:  "alice",
		Token:     "tok-123",
	}
}

func newClient(t *testing.T, pool *x509.CertPool, timeout time.Duration) *HTTPClient {
	t.Helper()
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return NewHTTPClient(staticPool{p: pool}, timeout, logging.NewNop())
}

func TestListFolder_ParsesListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/folders/Photos", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, `"abc"`, r.Header.Get("If-None-Match"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"etag": "\"def\"",
			"entries": [
				{"path": "/Photos/2024", "name": "2024", "folder": true, "etag": "\"e1\""},
				{"path": "/Photos/trip.jpg", "name": "trip.jpg", "folder": false, "size": 1024,
				 "modified": "2026-08-01T10:00:00Z", "etag": "\"e2\""}
			]
		}`))
	}))
	defer srv.Close()

	c := newClient(t, nil, 0)
	res := c.ListFolder(context.Background(), testAccount(srv.URL), "/Photos", `"abc"`)

	require.True(t, res.IsSuccess(), "unexpected result: %+v", res)
	assert.Equal(t, CodeOKNoTLS, res.Code)
	assert.Equal(t, `"def"`, res.FolderETag)
	require.Len(t, res.Entries, 2)

	assert.Equal(t, "alice@demo", res.Entries[0].AccountName)
	assert.Equal(t, "/Photos/2024", res.Entries[0].RemotePath)
	assert.Equal(t, "/Photos", res.Entries[0].ParentPath)
	assert.True(t, res.Entries[0].IsFolder)

	assert.Equal(t, "/Photos/trip.jpg", res.Entries[1].RemotePath)
	assert.Equal(t, int64(1024), res.Entries[1].Size)
	assert.False(t, res.Entries[1].IsFolder)
}

func TestListFolder_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ResultCode
	}{
		{"not modified", http.StatusNotModified, CodeNotModified},
		{"unauthorized", http.StatusUnauthorized, CodeUnauthorized},
		{"forbidden", http.StatusForbidden, CodeUnauthorized},
		{"not found", http.StatusNotFound, CodeNotFound},
		{"server error", http.StatusInternalServerError, CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := newClient(t, nil, 0)
			res := c.ListFolder(context.Background(), testAccount(srv.URL), "/Docs", "")
			assert.Equal(t, tt.want, res.Code)
		})
	}
}

func TestListFolder_UntrustedCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"etag": "\"x\"", "entries": []}`))
	}))
	defer srv.Close()

	// Empty pool source: the self-signed test certificate cannot verify.
	c := newClient(t, x509.NewCertPool(), 0)
	res := c.ListFolder(context.Background(), testAccount(srv.URL), "/Docs", "")

	assert.Equal(t, CodeUntrustedCert, res.Code)
	assert.NotEmpty(t, res.Chain, "unverified chain must be surfaced for the trust dialog")
}

func TestListFolder_TrustedCertificateSucceedsOverTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"etag": "\"x\"", "entries": []}`))
	}))
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	c := newClient(t, pool, 0)
	res := c.ListFolder(context.Background(), testAccount(srv.URL), "/Docs", "")

	assert.Equal(t, CodeOKTLS, res.Code)
}

func TestListFolder_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := newClient(t, nil, 50*time.Millisecond)
	res := c.ListFolder(context.Background(), testAccount(srv.URL), "/Docs", "")
	assert.Equal(t, CodeTimeout, res.Code)
}

func TestListFolder_HostUnreachable(t *testing.T) {
	c := newClient(t, nil, 0)
	res := c.ListFolder(context.Background(), testAccount("http://127.0.0.1:1"), "/Docs", "")
	assert.Equal(t, CodeHostUnreachable, res.Code)
}

func TestListFolder_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := newClient(t, nil, 0)
	res := c.ListFolder(ctx, testAccount(srv.URL), "/Docs", "")
	assert.Equal(t, CodeCancelled, res.Code)
}

func TestListFolder_ServerNotConfigured(t *testing.T) {
	c := newClient(t, nil, 0)

	res := c.ListFolder(context.Background(), testAccount(""), "/Docs", "")
	assert.Equal(t, CodeServerNotConfigured, res.Code)

	res = c.ListFolder(context.Background(), testAccount("not a url"), "/Docs", "")
	assert.Equal(t, CodeServerNotConfigured, res.Code)
}

func TestLogin_ReturnsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token": "fresh-token"}`))
	}))
	defer srv.Close()

	c := newClient(t, nil, 0)
	token, res := c.Login(context.Background(), srv.URL, "alice", "secret")

	require.True(t, res.IsSuccess())
	assert.Equal(t, "fresh-token", token)
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newClient(t, nil, 0)
	_, res := c.Login(context.Background(), srv.URL, "alice", "wrong")
	assert.Equal(t, CodeUnauthorized, res.Code)
}

func TestUpload_Roundtrip(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/files/Docs/a.txt", r.URL.Path)
		b := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(b)
		gotBody = b
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newClient(t, nil, 0)
	res := c.Upload(context.Background(), testAccount(srv.URL), "/Docs/a.txt",
		strings.NewReader("hello"), 5)

	require.True(t, res.IsSuccess())
	assert.Equal(t, "hello", string(gotBody))
}

func TestOpenDownload_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newClient(t, nil, 0)
	rc, _, res := c.OpenDownload(context.Background(), testAccount(srv.URL), "/gone.txt")
	assert.Nil(t, rc)
	assert.Equal(t, CodeNotFound, res.Code)
}
