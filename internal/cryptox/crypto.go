// Package cryptox implements the hashing used by the local passcode lock.
// The passcode never leaves the device; only an argon2id-derived verifier is
// stored in the client database.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
)

const saltSize = 16

// NewSalt returns a fresh random salt for passcode derivation.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// MakeVerifier reduces a derived key to the value actually persisted.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// VerifierMatches compares a stored verifier against one derived from user
// input, in constant time.
func VerifierMatches(stored, candidate []byte) bool {
	return subtle.ConstantTimeCompare(stored, candidate) == 1
}
