package crypto

import "errors"

var (
	// ErrInvalidKey is returned by NewCipher when ENCRYPTION_KEY is not a
	// base64-encoded 32-byte value.
	ErrInvalidKey = errors.New("invalid encryption key")

	// ErrCredentialDecrypt is returned by Unwrap when a stored blob cannot
	// be authenticated: wrong key, truncated data, tampering, or an unknown
	// format version.
	ErrCredentialDecrypt = errors.New("credential decrypt failed")
)
