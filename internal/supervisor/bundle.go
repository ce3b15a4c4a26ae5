// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/solanagram/solanagram/models"
)

// Bundle file names read by the worker entrypoint.
const (
	bundleConfigFile  = "config.json"
	bundleSessionFile = "session.session"
	bundleAPIHashFile = "api_hash"
)

// WriteBundle materializes a worker's credential bundle under
// root/<containerName>: config.json, session.session, and api_hash. The
// directory is owner-only (0700) and every file 0600; a container must never
// be able to read another user's bundle. Returns the bundle directory path.
//
// Any failure leaves no partial bundle behind.
func WriteBundle(root, containerName string, bundle models.WorkerBundle, apiHash string, sessionBlob []byte) (string, error) {
	dir := filepath.Join(root, containerName)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create bundle dir: %w", err)
	}

	write := func(name string, data []byte) error {
		return os.WriteFile(filepath.Join(dir, name), data, 0o600)
	}

	configRaw, err := json.Marshal(bundle)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("marshal bundle config: %w", err)
	}

	if err := write(bundleConfigFile, configRaw); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("write bundle config: %w", err)
	}
	if err := write(bundleSessionFile, sessionBlob); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("write bundle session: %w", err)
	}
	if err := write(bundleAPIHashFile, []byte(apiHash)); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("write bundle api hash: %w", err)
	}

	return dir, nil
}

// WipeBundle removes a worker's bundle directory. Idempotent.
func WipeBundle(root, containerName string) error {
	dir := filepath.Join(root, containerName)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("wipe bundle: %w", err)
	}
	return nil
}
