package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	plain := []byte("0123456789abcdef0123456789abcdef")
	blob, err := c.Wrap(plain)
	require.NoError(t, err)

	// Ciphertext must not contain the plaintext and must carry the version.
	assert.NotContains(t, string(blob), string(plain))
	assert.Equal(t, byte(blobVersion), blob[0])

	got, err := c.Unwrap(blob)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestWrap_Nondeterministic(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	a, err := c.Wrap([]byte("secret"))
	require.NoError(t, err)
	b, err := c.Wrap([]byte("secret"))
	require.NoError(t, err)

	assert.False(t, bytes.Equal(a, b), "two wraps of the same plaintext must differ")
}

func TestUnwrap_Tampered(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	blob, err := c.WrapString("deadbeefdeadbeef")
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xff
	_, err = c.Unwrap(blob)
	assert.ErrorIs(t, err, ErrCredentialDecrypt)
}

func TestUnwrap_WrongKey(t *testing.T) {
	c1, err := NewCipher(testKey(t))
	require.NoError(t, err)
	c2, err := NewCipher(testKey(t))
	require.NoError(t, err)

	blob, err := c1.WrapString("deadbeefdeadbeef")
	require.NoError(t, err)

	_, err = c2.Unwrap(blob)
	assert.ErrorIs(t, err, ErrCredentialDecrypt)
}

func TestUnwrap_UnknownVersion(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	blob, err := c.Wrap([]byte("x"))
	require.NoError(t, err)

	blob[0] = 0x7f
	_, err = c.Unwrap(blob)
	assert.ErrorIs(t, err, ErrCredentialDecrypt)
}

func TestUnwrap_TooShort(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	_, err = c.Unwrap([]byte{blobVersion, 0x01})
	assert.ErrorIs(t, err, ErrCredentialDecrypt)
}

func TestNewCipher_BadKey(t *testing.T) {
	_, err := NewCipher("not base64!!")
	assert.ErrorIs(t, err, ErrInvalidKey)

	short := base64.StdEncoding.EncodeToString([]byte("short"))
	_, err = NewCipher(short)
	assert.ErrorIs(t, err, ErrInvalidKey)
}
