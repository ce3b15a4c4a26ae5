// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"sync"
	"time"
)

// PendingCodeTTL is how long a sent login code stays usable, matching
// Telegram's own code validity window.
const PendingCodeTTL = 120 * time.Second

// CachedCodeTTL is how long a successfully verified code is kept for reuse,
// letting a follow-up login within the window skip a send-code round trip.
const CachedCodeTTL = 300 * time.Second

// PendingCode is the per-phone record that a login code is in flight. At
// most one exists per phone; a new send replaces it. After a successful
// verification the entered code is kept (Code field) so check-cached-code
// and use-cached-code can reuse it within CachedCodeTTL.
type PendingCode struct {
	Phone    string `json:"phone"`
	CodeHash string `json:"code_hash"`

	// Code is empty until the code has been verified once.
	Code string `json:"code,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Expired reports whether the entry is past its validity window.
func (p *PendingCode) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// CodeCache stores pending codes keyed by phone. Implementations: in-memory
// (always available) and Redis (shared across replicas when configured).
type CodeCache interface {
	Get(ctx context.Context, phone string) (*PendingCode, bool, error)
	Put(ctx context.Context, code *PendingCode) error
	Delete(ctx context.Context, phone string) error
}

// memoryCodeCache is the Redis-free fallback. Expiry is enforced lazily on
// Get; the map stays small because entries live at most CachedCodeTTL.
type memoryCodeCache struct {
	mu    sync.Mutex
	codes map[string]*PendingCode
	now   func() time.Time
}

// NewMemoryCodeCache constructs the in-process pending-code cache.
func NewMemoryCodeCache() CodeCache {
	return &memoryCodeCache{
		codes: make(map[string]*PendingCode),
		now:   time.Now,
	}
}

func (c *memoryCodeCache) Get(_ context.Context, phone string) (*PendingCode, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.codes[phone]
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(c.now()) {
		delete(c.codes, phone)
		return nil, false, nil
	}

	copied := *entry
	return &copied, true, nil
}

func (c *memoryCodeCache) Put(_ context.Context, code *PendingCode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *code
	c.codes[code.Phone] = &copied
	return nil
}

func (c *memoryCodeCache) Delete(_ context.Context, phone string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.codes, phone)
	return nil
}
