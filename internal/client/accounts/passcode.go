package accounts

import (
	"context"

	"github.com/okatashev/nimbus/internal/common"
	"github.com/okatashev/nimbus/internal/cryptox"
)

// SetPasscode enables the local passcode lock. Only an argon2id verifier and
// the salt are persisted.
func (s *Store) SetPasscode(ctx context.Context, passcode string) error {
	salt, err := cryptox.NewSalt()
	if err != nil {
		return err
	}
	key := cryptox.DerivePasscodeKey([]byte(passcode), salt)
	if err := s.meta.Set(ctx, common.MetaPasscodeSalt, salt); err != nil {
		return err
	}
	return s.meta.Set(ctx, common.MetaPasscodeHash, cryptox.MakeVerifier(key))
}

// PasscodeSet reports whether the lock is enabled.
func (s *Store) PasscodeSet(ctx context.Context) (bool, error) {
	hash, err := s.meta.Get(ctx, common.MetaPasscodeHash)
	if err != nil {
		return false, err
	}
	return len(hash) > 0, nil
}

// VerifyPasscode checks user input against the stored verifier. Returns
// common.ErrPasscodeNotSet when the lock is disabled and
// common.ErrInvalidPasscode on mismatch.
func (s *Store) VerifyPasscode(ctx context.Context, passcode string) error {
	hash, err := s.meta.Get(ctx, common.MetaPasscodeHash)
	if err != nil {
		return err
	}
	if len(hash) == 0 {
		return common.ErrPasscodeNotSet
	}
	salt, err := s.meta.Get(ctx, common.MetaPasscodeSalt)
	if err != nil {
		return err
	}
	key := cryptox.DerivePasscodeKey([]byte(passcode), salt)
	if !cryptox.VerifierMatches(hash, cryptox.MakeVerifier(key)) {
		return common.ErrInvalidPasscode
	}
	return nil
}

// ClearPasscode disables the lock.
func (s *Store) ClearPasscode(ctx context.Context) error {
	if err := s.meta.Delete(ctx, common.MetaPasscodeHash); err != nil {
		return err
	}
	return s.meta.Delete(ctx, common.MetaPasscodeSalt)
}
