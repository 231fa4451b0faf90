package cryptox

import "golang.org/x/crypto/argon2"

// DerivePasscodeKey stretches a short numeric passcode into a 32-byte key.
// Parameters follow the argon2id recommendations for interactive login.
func DerivePasscodeKey(passcode []byte, salt []byte) []byte {
	return argon2.IDKey(passcode, salt, 1, 64*1024, 4, 32)
}
