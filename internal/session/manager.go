// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/telegram"
)

// CredentialSource resolves the decrypted Telegram credentials and the
// persisted session blob for a phone. The persistence layer implements it;
// plaintext never leaves orchestrator memory.
type CredentialSource interface {
	TelegramCredentials(ctx context.Context, phone string) (apiID int, apiHash string, sessionBlob []byte, err error)
}

// Manager materializes usable Telegram clients. EnsureConnected is the single
// entry point for "give me a connected client for this phone"; it serializes
// per phone through the registry lock and performs the bounded
// connect/probe/retry dance of the client lifecycle.
type Manager struct {
	registry *Registry
	factory  telegram.Factory
	creds    CredentialSource

	connectTimeout time.Duration
	probeTimeout   time.Duration
	maxAttempts    uint64
	retryDelay     time.Duration

	log *logger.Logger
}

// NewManager wires a Manager over the registry, client factory, and
// credential source.
func NewManager(registry *Registry, factory telegram.Factory, creds CredentialSource, connectTimeout, probeTimeout time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		registry:       registry,
		factory:        factory,
		creds:          creds,
		connectTimeout: connectTimeout,
		probeTimeout:   probeTimeout,
		maxAttempts:    3,
		retryDelay:     time.Second,
		log:            log,
	}
}

// Registry exposes the underlying registry for eviction by error handlers
// and the cleanup loop.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// EnsureConnected acquires the phone's single-flight lock and returns a
// fresh connected handle, creating at most one client per phone however many
// callers contend. Contenders wait and then observe the cached handle.
func (m *Manager) EnsureConnected(ctx context.Context, phone string) (*Handle, error) {
	unlock := m.registry.Lock(phone)
	defer unlock()

	return m.EnsureConnectedLocked(ctx, phone)
}

// EnsureConnectedLocked is EnsureConnected for callers that already hold the
// phone's single-flight lock (the auth flow serializes whole operations, not
// just client acquisition).
func (m *Manager) EnsureConnectedLocked(ctx context.Context, phone string) (*Handle, error) {
	if handle, ok := m.registry.Get(phone); ok {
		return handle, nil
	}

	apiID, apiHash, sessionBlob, err := m.creds.TelegramCredentials(ctx, phone)
	if err != nil {
		return nil, err
	}

	var handle *Handle
	backoff := retry.WithMaxRetries(m.maxAttempts-1, retry.NewConstant(m.retryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		h, attemptErr := m.attempt(ctx, phone, apiID, apiHash, sessionBlob)
		if attemptErr != nil {
			m.log.Warn().Err(attemptErr).Str("phone", phone).Msg("connect attempt failed")
			return retry.RetryableError(attemptErr)
		}
		handle = h
		return nil
	})
	if err != nil {
		return nil, telegram.ErrConnectUnavailable
	}

	return handle, nil
}

// attempt runs one connect + advisory probe cycle. On failure the client is
// fully disconnected so no half-open transport survives the attempt.
func (m *Manager) attempt(ctx context.Context, phone string, apiID int, apiHash string, sessionBlob []byte) (*Handle, error) {
	client, err := m.factory.New(apiID, apiHash, sessionBlob)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	err = client.Connect(connectCtx)
	cancel()
	if err != nil {
		_ = client.Disconnect()
		return nil, err
	}

	authorized, err := m.probe(ctx, client)
	if err != nil {
		_ = client.Disconnect()
		return nil, err
	}

	return m.registry.Put(phone, client, authorized), nil
}

// probe runs the "who am I" health check. The outcome is advisory: an
// unauthorized session still yields a usable client (send-code remains
// valid); only transport failures count against the attempt budget.
func (m *Manager) probe(ctx context.Context, client telegram.Client) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	authorized, err := client.Authorized(probeCtx)
	switch {
	case err == nil:
		return authorized, nil
	case errors.Is(err, telegram.ErrAuthorizationLost):
		return false, nil
	default:
		return false, err
	}
}

// Evict drops the phone's cached handle after an unrecoverable error class.
func (m *Manager) Evict(phone string) {
	m.registry.Evict(phone)
}
