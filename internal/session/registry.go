// SPDX-License-Identifier: Apache-2.0

// Package session owns the runtime state of live Telegram clients: the
// process-wide phone→handle registry with TTL eviction and per-phone
// single-flight locking, the client manager that materializes usable
// connections, and the short-lived pending-code and SMS-counter caches.
//
// The registry is purely in-memory; restarting the process forfeits cached
// handles. The persisted session blob in Postgres is the durable root.
package session

import (
	"sync"
	"time"

	"github.com/solanagram/solanagram/internal/telegram"
)

// Handle is one cached live client. It is owned exclusively by the registry;
// callers receive it only while holding the phone's single-flight lock or
// for the duration of a bridge operation.
type Handle struct {
	Phone      string
	Client     telegram.Client
	CreatedAt  time.Time
	Authorized bool
	LastUsed   time.Time
}

// Registry is the process-wide mapping phone → live client handle.
// All mutation happens under the per-phone lock plus the registry mutex.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	handles map[string]*Handle
	locks   map[string]*sync.Mutex
}

// NewRegistry constructs an empty registry whose handles stay valid for ttl
// after creation.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:     ttl,
		now:     time.Now,
		handles: make(map[string]*Handle),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Lock acquires the single-flight lock for phone and returns the unlock
// function. Any caller that wants a client for phone either observes the
// cached handle or creates exactly one while contenders wait here.
func (r *Registry) Lock(phone string) func() {
	r.mu.Lock()
	lock, ok := r.locks[phone]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[phone] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Get returns the cached handle for phone when it is still fresh
// (now − created_at ≤ ttl) and its client reports connected. A stale or
// broken handle is evicted on the spot and (nil, false) is returned.
func (r *Registry) Get(phone string) (*Handle, bool) {
	r.mu.Lock()
	handle, ok := r.handles[phone]
	r.mu.Unlock()

	if !ok {
		return nil, false
	}

	if r.now().Sub(handle.CreatedAt) > r.ttl || !handle.Client.Connected() {
		r.Evict(phone)
		return nil, false
	}

	handle.LastUsed = r.now()
	return handle, true
}

// Put caches a freshly connected client and returns its handle, replacing
// (and disconnecting) any previous entry for the phone.
func (r *Registry) Put(phone string, client telegram.Client, authorized bool) *Handle {
	handle := &Handle{
		Phone:      phone,
		Client:     client,
		CreatedAt:  r.now(),
		Authorized: authorized,
		LastUsed:   r.now(),
	}

	r.mu.Lock()
	previous := r.handles[phone]
	r.handles[phone] = handle
	r.mu.Unlock()

	if previous != nil {
		_ = previous.Client.Disconnect()
	}
	return handle
}

// Evict removes the handle for phone, attempting a best-effort disconnect.
// Idempotent: evicting an absent phone is a no-op returning false.
func (r *Registry) Evict(phone string) bool {
	r.mu.Lock()
	handle, ok := r.handles[phone]
	delete(r.handles, phone)
	r.mu.Unlock()

	if !ok {
		return false
	}

	_ = handle.Client.Disconnect()
	return true
}

// Sweep evicts every handle older than the TTL or whose client no longer
// reports connected, and returns the evicted phone numbers. Called by the
// cleanup loop every sweep interval.
func (r *Registry) Sweep() []string {
	r.mu.Lock()
	var expired []string
	for phone, handle := range r.handles {
		if r.now().Sub(handle.CreatedAt) > r.ttl || !handle.Client.Connected() {
			expired = append(expired, phone)
		}
	}
	r.mu.Unlock()

	for _, phone := range expired {
		r.Evict(phone)
	}
	return expired
}

// Len returns the number of cached handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
