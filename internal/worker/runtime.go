// SPDX-License-Identifier: Apache-2.0

// Package worker is the runtime shared by the container binaries
// (cmd/logworker, cmd/listenworker). A worker reads its credential bundle,
// connects directly to Telegram with the supplied session, and writes
// captures to the shared database. Workers never call back into the
// orchestrator: the database row is the only contract.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/solanagram/solanagram/models"
)

// Bundle file names, matching what the supervisor materializes.
const (
	configFile  = "config.json"
	sessionFile = "session.session"
	apiHashFile = "api_hash"
)

// DefaultConfigDir is where the bundle is mounted inside the container.
const DefaultConfigDir = "/app/config"

// Runtime is the loaded bundle of one worker.
type Runtime struct {
	Bundle      models.WorkerBundle
	APIHash     string
	SessionBlob []byte
}

// LoadRuntime reads the bundle directory. The api hash may alternatively
// arrive via the API_HASH environment variable.
func LoadRuntime(dir string) (*Runtime, error) {
	if dir == "" {
		dir = os.Getenv("CONFIG_DIR")
	}
	if dir == "" {
		dir = DefaultConfigDir
	}

	raw, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		return nil, fmt.Errorf("read bundle config: %w", err)
	}

	var bundle models.WorkerBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("decode bundle config: %w", err)
	}
	if bundle.APIID == 0 || bundle.ChatID == 0 || bundle.DatabaseDSN == "" {
		return nil, errors.New("bundle config incomplete")
	}

	sessionBlob, err := os.ReadFile(filepath.Join(dir, sessionFile))
	if err != nil {
		return nil, fmt.Errorf("read bundle session: %w", err)
	}

	apiHash := os.Getenv("API_HASH")
	if raw, err := os.ReadFile(filepath.Join(dir, apiHashFile)); err == nil {
		apiHash = strings.TrimSpace(string(raw))
	}
	if apiHash == "" {
		return nil, errors.New("api hash missing from bundle and environment")
	}

	return &Runtime{
		Bundle:      bundle,
		APIHash:     apiHash,
		SessionBlob: sessionBlob,
	}, nil
}
