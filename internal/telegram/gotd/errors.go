// SPDX-License-Identifier: Apache-2.0

package gotd

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"

	"github.com/solanagram/solanagram/internal/telegram"
)

// classify maps a gotd failure into the orchestrator's typed error taxonomy.
// The mapping mirrors the recovery table of the client manager: transport
// drops are the only retryable class, flood waits carry their seconds, and
// auth-key loss is distinguished from bad credentials.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if seconds, ok := tgerr.AsFloodWait(err); ok {
		return &telegram.FloodWaitError{Seconds: int(seconds.Seconds())}
	}

	switch {
	case tgerr.Is(err, "PHONE_CODE_INVALID"):
		return telegram.ErrCodeInvalid
	case tgerr.Is(err, "PHONE_CODE_EXPIRED"):
		return telegram.ErrCodeExpired
	case errors.Is(err, auth.ErrPasswordAuthNeeded), tgerr.Is(err, "SESSION_PASSWORD_NEEDED"):
		return telegram.ErrNeeds2FA
	case errors.Is(err, auth.ErrPasswordInvalid), tgerr.Is(err, "PASSWORD_HASH_INVALID"):
		return telegram.ErrPasswordInvalid
	case tgerr.Is(err, "AUTH_KEY_UNREGISTERED", "SESSION_REVOKED", "SESSION_EXPIRED", "USER_DEACTIVATED"):
		return telegram.ErrAuthorizationLost
	case tgerr.Is(err, "API_ID_INVALID", "API_ID_PUBLISHED_FLOOD"):
		return telegram.ErrCredentialsInvalid
	case isTransport(err):
		return telegram.ErrTransportDisconnected
	}

	return &telegram.Error{Message: err.Error()}
}

// isTransport recognizes dropped-connection failures, including the string
// forms gotd engines emit when a request races a disconnect.
func isTransport(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	for _, marker := range []string{
		"engine was closed",
		"connection dead",
		"client is not connected",
		"cannot send while disconnected",
		"connection reset",
		"broken pipe",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
