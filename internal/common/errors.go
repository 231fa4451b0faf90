// Package common defines shared constants and sentinel errors used across
// the nimbus client layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Contract violations surfaced directly to the caller.
	ErrNoAccount     = errors.New("no account configured")
	ErrAccountExists = errors.New("account already exists")

	// Sync/transfer specific errors.
	ErrUntrustedServer   = errors.New("untrusted server certificate")
	ErrTransferActive    = errors.New("transfer already in progress")
	ErrTokenExpired      = errors.New("token expired")
	ErrInvalidPasscode   = errors.New("invalid passcode")
	ErrPasscodeNotSet    = errors.New("passcode not set")
	ErrLocalFileMissing  = errors.New("local file missing")
	ErrUnknownBackend    = errors.New("unknown transfer backend")
	ErrDecisionUnknown   = errors.New("unknown trust decision")
	ErrDecisionResolved  = errors.New("trust decision already resolved")
	ErrNotAFolder        = errors.New("not a folder")
	ErrServerUnreachable = errors.New("server unreachable")
)
