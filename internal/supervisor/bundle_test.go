package supervisor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solanagram/solanagram/models"
)

func TestWriteBundle_FilesAndPermissions(t *testing.T) {
	root := t.TempDir()

	dir, err := WriteBundle(root, "solanagram-log-1-1001234567890", models.WorkerBundle{
		APIID:       25128314,
		Phone:       "+391234567890",
		ChatID:      -1001234567890,
		DatabaseDSN: "postgres://worker@db/solanagram",
		SessionID:   10,
	}, "deadbeefdeadbeef", []byte("opaque-session"))
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm(), "bundle dir must be owner-only")

	for _, name := range []string{bundleConfigFile, bundleSessionFile, bundleAPIHashFile} {
		fi, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm(), name)
	}

	raw, err := os.ReadFile(filepath.Join(dir, bundleConfigFile))
	require.NoError(t, err)

	var bundle models.WorkerBundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	assert.Equal(t, int64(-1001234567890), bundle.ChatID)
	assert.Equal(t, int64(10), bundle.SessionID)

	// Key material lives in sibling files, never inside config.json.
	assert.NotContains(t, string(raw), "deadbeef")
	assert.NotContains(t, string(raw), "opaque-session")
}

func TestWipeBundle_Idempotent(t *testing.T) {
	root := t.TempDir()

	_, err := WriteBundle(root, "solanagram-log-1-5", models.WorkerBundle{}, "h", []byte("s"))
	require.NoError(t, err)

	require.NoError(t, WipeBundle(root, "solanagram-log-1-5"))
	require.NoError(t, WipeBundle(root, "solanagram-log-1-5"))

	_, err = os.Stat(filepath.Join(root, "solanagram-log-1-5"))
	assert.True(t, os.IsNotExist(err))
}

func TestContainerNames(t *testing.T) {
	assert.Equal(t, "solanagram-log-1-1001234567890", LogContainerName(1, -1001234567890))
	assert.Equal(t, "solanagram-listener-7-42", ListenerContainerName(7, 42))
}

func TestSanitizeNamePart(t *testing.T) {
	assert.Equal(t, "abc_def", sanitizeNamePart("abc def"))
	assert.Equal(t, "100123", sanitizeNamePart("-100123"))
	assert.Equal(t, "a_b", sanitizeNamePart("a***b"))
	assert.Equal(t, "x", sanitizeNamePart("__x__"))
}
