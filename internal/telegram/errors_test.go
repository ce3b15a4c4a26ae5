package telegram

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsFloodWait(t *testing.T) {
	fw, ok := AsFloodWait(&FloodWaitError{Seconds: 42})
	assert.True(t, ok)
	assert.Equal(t, 42, fw.Seconds)

	wrapped := fmt.Errorf("send code: %w", &FloodWaitError{Seconds: 7})
	fw, ok = AsFloodWait(wrapped)
	assert.True(t, ok)
	assert.Equal(t, 7, fw.Seconds)

	_, ok = AsFloodWait(ErrCodeInvalid)
	assert.False(t, ok)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrTransportDisconnected))
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", ErrTransportDisconnected)))

	// Everything else surfaces without automatic retry.
	assert.False(t, IsRetryable(ErrCodeInvalid))
	assert.False(t, IsRetryable(&FloodWaitError{Seconds: 10}))
	assert.False(t, IsRetryable(ErrAuthorizationLost))
	assert.False(t, IsRetryable(errors.New("anything")))
	assert.False(t, IsRetryable(nil))
}

func TestFloodWaitError_Message(t *testing.T) {
	err := &FloodWaitError{Seconds: 3600}
	assert.Contains(t, err.Error(), "3600")
}
