package trust

import (
	"context"
	"crypto/x509"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/client/repositories/certs"
	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/logging"
)

func setupManager(t *testing.T) (*Manager, certs.Repository) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS trusted_certs (
  fingerprint TEXT PRIMARY KEY,
  pem TEXT NOT NULL,
  added_at INTEGER NOT NULL
);
`)
	require.NoError(t, err)

	repo := certs.NewSQLiteRepository(db)
	m, err := NewManager(context.Background(), repo, logging.NewNop())
	require.NoError(t, err)
	return m, repo
}

// serverCert returns a fresh self-signed certificate.
func serverCert(t *testing.T) *x509.Certificate {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)
	return srv.Certificate()
}

func TestAccept_PersistsAndConsumesDecision(t *testing.T) {
	m, repo := setupManager(t)
	ctx := context.Background()
	cert := serverCert(t)

	d := m.NewDecision("alice@demo", "/Docs", []*x509.Certificate{cert})
	_, ok := m.Pending(d.ID)
	require.True(t, ok)

	resolved, err := m.Accept(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, resolved.ID)

	_, ok = m.Pending(d.ID)
	assert.False(t, ok, "decision must be consumed")

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.CertFingerprint(cert), stored[0].Fingerprint)
}

// failingCertRepo refuses writes, simulating a broken trust store.
type failingCertRepo struct{}

func (failingCertRepo) Add(ctx context.Context, c *models.TrustedCert) error {
	return errors.New("disk full")
}
func (failingCertRepo) List(ctx context.Context) ([]models.TrustedCert, error) { return nil, nil }
func (failingCertRepo) Delete(ctx context.Context, fingerprint string) error   { return nil }

func TestAccept_FailedSaveConsumesDecision(t *testing.T) {
	m, err := NewManager(context.Background(), failingCertRepo{}, logging.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	d := m.NewDecision("alice@demo", "/Docs", []*x509.Certificate{serverCert(t)})

	_, err = m.Accept(ctx, d.ID)
	require.Error(t, err)

	// The decision is gone even though the save failed: the suspended sync
	// is aborted by the caller, so nothing could ever resolve it again.
	_, ok := m.Pending(d.ID)
	assert.False(t, ok)
	_, err = m.Accept(ctx, d.ID)
	assert.True(t, errors.Is(err, common.ErrDecisionUnknown))
}

func TestAccept_UnknownDecision(t *testing.T) {
	m, _ := setupManager(t)

	_, err := m.Accept(context.Background(), "nope")
	assert.True(t, errors.Is(err, common.ErrDecisionUnknown))
}

func TestReject_ConsumesWithoutPersisting(t *testing.T) {
	m, repo := setupManager(t)
	ctx := context.Background()

	d := m.NewDecision("alice@demo", "/Docs", []*x509.Certificate{serverCert(t)})
	_, err := m.Reject(ctx, d.ID)
	require.NoError(t, err)

	_, ok := m.Pending(d.ID)
	assert.False(t, ok)

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	// Resolving twice fails: the decision is gone.
	_, err = m.Reject(ctx, d.ID)
	assert.True(t, errors.Is(err, common.ErrDecisionUnknown))
}

func TestPool_ContainsAcceptedCertificate(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()
	cert := serverCert(t)

	before := m.Pool()

	d := m.NewDecision("alice@demo", "/Docs", []*x509.Certificate{cert})
	_, err := m.Accept(ctx, d.ID)
	require.NoError(t, err)

	after := m.Pool()
	assert.NotSame(t, before, after, "pool must be rebuilt on accept")

	// The accepted certificate now verifies against the pool.
	_, err = cert.Verify(x509.VerifyOptions{Roots: after, DNSName: ""})
	assert.NoError(t, err)
}
