// Package trust handles server certificates the client cannot verify: it
// tracks pending user decisions, persists accepted certificates, and serves
// the root pool used by the HTTP layer so an accepted certificate verifies
// on the retry.
package trust

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/okatashev/nimbus/internal/client/models"
	"github.com/okatashev/nimbus/internal/client/repositories/certs"
	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/logging"
)

type Manager struct {
	repo certs.Repository
	log  logging.Logger

	mu      sync.RWMutex
	pool    *x509.CertPool
	pending map[string]*models.TrustDecision
}

// NewManager loads the persisted certificates and builds the initial pool.
func NewManager(ctx context.Context, repo certs.Repository, log logging.Logger) (*Manager, error) {
	m := &Manager{
		repo:    repo,
		log:     log.With("component", "trust"),
		pending: make(map[string]*models.TrustDecision),
	}
	if err := m.rebuildPool(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Pool returns the current root pool: system roots plus accepted certs.
// Implements remote.CertPoolSource.
func (m *Manager) Pool() *x509.CertPool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pool
}

func (m *Manager) rebuildPool(ctx context.Context) error {
	pool, err := x509.SystemCertPool()
	if err != nil {
		// No system store available; start from the accepted certs alone.
		pool = x509.NewCertPool()
	}

	stored, err := m.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading trusted certs: %w", err)
	}
	for _, c := range stored {
		if !pool.AppendCertsFromPEM([]byte(c.PEM)) {
			m.log.Warn(ctx, "skipping unparseable stored certificate", "fingerprint", c.Fingerprint)
		}
	}

	m.mu.Lock()
	m.pool = pool
	m.mu.Unlock()
	return nil
}

// NewDecision registers a pending decision for an unverified chain and
// returns it for display to the user.
func (m *Manager) NewDecision(account, folderPath string, chain []*x509.Certificate) *models.TrustDecision {
	d := &models.TrustDecision{
		ID:          uuid.NewString(),
		AccountName: account,
		FolderPath:  folderPath,
		Chain:       chain,
	}
	m.mu.Lock()
	m.pending[d.ID] = d
	m.mu.Unlock()
	return d
}

// Pending looks up an unresolved decision by ID.
func (m *Manager) Pending(id string) (*models.TrustDecision, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.pending[id]
	return d, ok
}

// Accept persists the leaf certificate of the decision and refreshes the
// pool. The decision is consumed whether or not the save succeeds: a failed
// save aborts the suspended sync, so a re-pended decision would have nothing
// left to resume and sit orphaned forever. The user triggers a fresh sync
// and gets a fresh decision instead.
func (m *Manager) Accept(ctx context.Context, id string) (*models.TrustDecision, error) {
	d, err := m.take(id)
	if err != nil {
		return nil, err
	}
	leaf := d.Leaf()
	if leaf == nil {
		return nil, fmt.Errorf("%w: decision %s has no certificate", common.ErrorInternal, id)
	}

	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leaf.Raw})
	err = m.repo.Add(ctx, &models.TrustedCert{
		Fingerprint: models.CertFingerprint(leaf),
		PEM:         string(block),
	})
	if err != nil {
		return nil, err
	}

	if err := m.rebuildPool(ctx); err != nil {
		// The certificate is persisted; it enters the pool on the next
		// rebuild even though this one failed.
		return nil, err
	}
	m.log.Info(ctx, "certificate accepted", "fingerprint", models.CertFingerprint(leaf),
		"subject", leaf.Subject.String())
	return d, nil
}

// Reject consumes the decision without persisting anything.
func (m *Manager) Reject(ctx context.Context, id string) (*models.TrustDecision, error) {
	d, err := m.take(id)
	if err != nil {
		return nil, err
	}
	m.log.Info(ctx, "certificate rejected", "account", d.AccountName, "folder", d.FolderPath)
	return d, nil
}

func (m *Manager) take(id string) (*models.TrustDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.pending[id]
	if !ok {
		return nil, common.ErrDecisionUnknown
	}
	delete(m.pending, id)
	return d, nil
}
