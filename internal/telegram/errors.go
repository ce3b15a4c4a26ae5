// SPDX-License-Identifier: Apache-2.0

package telegram

import (
	"errors"
	"fmt"
)

// Typed errors every adapter maps library failures into. The recovery policy
// is fixed per class: only ErrTransportDisconnected may trigger an automatic
// retry (exactly one, after evicting the client); everything else surfaces
// to the caller.
var (
	// ErrTransportDisconnected covers dropped connections, "not connected",
	// and "cannot send while disconnected" signals.
	ErrTransportDisconnected = errors.New("telegram transport disconnected")

	// ErrConnectUnavailable is the terminal form of repeated connect
	// failures from the client manager.
	ErrConnectUnavailable = errors.New("telegram connect unavailable")

	// ErrCodeInvalid means the login code was rejected.
	ErrCodeInvalid = errors.New("verification code invalid")

	// ErrCodeExpired means the login code outlived its validity window.
	ErrCodeExpired = errors.New("verification code expired")

	// ErrNeeds2FA means the account has a cloud password and sign-in must
	// continue with SignInPassword.
	ErrNeeds2FA = errors.New("2FA password required")

	// ErrPasswordInvalid means the 2FA password was rejected.
	ErrPasswordInvalid = errors.New("2FA password invalid")

	// ErrAuthorizationLost means the auth key was unregistered or the
	// session revoked; the stored session blob must be cleared.
	ErrAuthorizationLost = errors.New("telegram authorization lost")

	// ErrCredentialsInvalid means Telegram rejected the api_id/api_hash
	// pair itself.
	ErrCredentialsInvalid = errors.New("telegram api credentials invalid")
)

// FloodWaitError carries Telegram's imposed cool-down. It is surfaced
// verbatim with the seconds value and never retried automatically.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: retry after %d seconds", e.Seconds)
}

// AsFloodWait unwraps err into a FloodWaitError when it is one.
func AsFloodWait(err error) (*FloodWaitError, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw, true
	}
	return nil, false
}

// Error wraps any Telegram failure outside the recognized classes. It is
// surfaced opaquely and never retried.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("telegram error: %s", e.Message)
}

// IsRetryable reports whether the manager may perform its single
// evict-and-retry recovery for err.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransportDisconnected)
}
