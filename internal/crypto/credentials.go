// SPDX-License-Identifier: Apache-2.0

// Package crypto implements the credential store: symmetric authenticated
// encryption over the per-deployment key for Telegram api_hash values and
// session blobs. Only ciphertext ever reaches the database; plaintext exists
// in orchestrator memory only and is never logged.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// blobVersion is the wrapping-format version byte prepended to every
// ciphertext. A future key rotation bumps this value; Unwrap rejects
// versions it does not understand.
const blobVersion = 0x01

const keyLen = 32 // AES-256

// Cipher wraps and unwraps credential material with AES-256-GCM.
// The zero value is unusable; construct with [NewCipher].
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a [Cipher] from the base64-encoded 32-byte key configured
// via ENCRYPTION_KEY.
func NewCipher(base64Key string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	if len(key) != keyLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, keyLen, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	return &Cipher{aead: aead}, nil
}

// Wrap encrypts plain and returns the storable blob:
// version byte ‖ nonce (12 bytes) ‖ ciphertext+tag.
func (c *Cipher) Wrap(plain []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	blob := make([]byte, 0, 1+len(nonce)+len(plain)+c.aead.Overhead())
	blob = append(blob, blobVersion)
	blob = append(blob, nonce...)
	blob = c.aead.Seal(blob, nonce, plain, nil)

	return blob, nil
}

// WrapString is a convenience wrapper for string secrets (api_hash).
func (c *Cipher) WrapString(plain string) ([]byte, error) {
	return c.Wrap([]byte(plain))
}

// Unwrap decrypts a blob produced by [Cipher.Wrap]. Tampered ciphertext, a
// wrong key, or an unknown version byte all yield [ErrCredentialDecrypt];
// callers must treat the stored credential as unusable in that case.
func (c *Cipher) Unwrap(blob []byte) ([]byte, error) {
	if len(blob) < 1+c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: blob too short", ErrCredentialDecrypt)
	}
	if blob[0] != blobVersion {
		return nil, fmt.Errorf("%w: unknown blob version %#x", ErrCredentialDecrypt, blob[0])
	}

	nonce := blob[1 : 1+c.aead.NonceSize()]
	ciphertext := blob[1+c.aead.NonceSize():]

	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCredentialDecrypt, err)
	}

	return plain, nil
}

// UnwrapString is a convenience wrapper for string secrets (api_hash).
func (c *Cipher) UnwrapString(blob []byte) (string, error) {
	plain, err := c.Unwrap(blob)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
