package models

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
)

// TrustDecision is a pending user decision about a server certificate chain
// the client does not already trust. It lives only until the user resolves
// it; only an accepted certificate is persisted.
type TrustDecision struct {
	ID          string
	AccountName string
	FolderPath  string
	Chain       []*x509.Certificate
}

// Leaf returns the server's own certificate, or nil for an empty chain.
func (d *TrustDecision) Leaf() *x509.Certificate {
	if len(d.Chain) == 0 {
		return nil
	}
	return d.Chain[0]
}

// Fingerprint returns the hex-encoded SHA-256 of the leaf certificate.
func (d *TrustDecision) Fingerprint() string {
	leaf := d.Leaf()
	if leaf == nil {
		return ""
	}
	return CertFingerprint(leaf)
}

// CertFingerprint is the canonical identity of a certificate in the local
// trust store.
func CertFingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// TrustedCert is a persisted, user-accepted server certificate.
type TrustedCert struct {
	Fingerprint string
	PEM         string
	AddedAt     int64
}
