// SPDX-License-Identifier: Apache-2.0

// Package telegram defines the narrow port through which the orchestrator
// talks to the Telegram MTProto service, together with the typed error
// taxonomy every adapter must map library failures into. The production
// adapter lives in the gotd subpackage; tests substitute fakes.
package telegram

import (
	"context"

	"github.com/solanagram/solanagram/models"
)

// SentCode is the outcome of a send-code call: the hash Telegram expects
// back during sign-in, plus the code validity window in seconds when the
// library reports one.
type SentCode struct {
	PhoneCodeHash string
	Timeout       int
}

// Client is one live handle to the Telegram service for a single phone
// account. Implementations are NOT safe for concurrent use; all calls must
// come from the bridge's owning scheduler.
type Client interface {
	// Connect establishes the transport. Bounded by ctx.
	Connect(ctx context.Context) error

	// Disconnect tears the transport down. Idempotent.
	Disconnect() error

	// Connected reports whether the transport is currently up.
	Connected() bool

	// Authorized performs the lightweight "who am I" probe and reports
	// whether the session is signed in.
	Authorized(ctx context.Context) (bool, error)

	// SendCode asks Telegram to deliver a login code to the phone.
	SendCode(ctx context.Context, phone string) (SentCode, error)

	// SignIn completes login with the delivered code. Returns ErrNeeds2FA
	// when the account has a cloud password.
	SignIn(ctx context.Context, phone, code, codeHash string) error

	// SignInPassword completes the 2FA step.
	SignInPassword(ctx context.Context, password string) error

	// Dialogs returns the account's open conversations.
	Dialogs(ctx context.Context, limit int) ([]models.Chat, error)

	// ResolveChat resolves a single chat the account participates in.
	ResolveChat(ctx context.Context, chatID int64) (models.Chat, error)

	// ExportSession returns the opaque session blob that restores this
	// authorization without a new SMS code.
	ExportSession() ([]byte, error)
}

// Factory materializes clients from credentials and an optional persisted
// session blob.
type Factory interface {
	New(apiID int, apiHash string, sessionBlob []byte) (Client, error)
}
