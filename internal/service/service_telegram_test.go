package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/internal/telegram"
	"github.com/solanagram/solanagram/models"
)

func TestSendLoginCode_HappyPath(t *testing.T) {
	client := &scriptClient{}
	fx := newServiceFixture(t, client)
	fx.registerUser(t)

	result, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)
	require.NoError(t, err)

	assert.Equal(t, StatusCodeSent, result.Status)
	assert.Equal(t, 1, client.sendCodes)
	assert.Equal(t, 1, result.Counter.Count)

	// The pending code is cached with its hash.
	pending, ok, err := fx.codes.Get(context.Background(), testPhone)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hash-1", pending.CodeHash)
	assert.Empty(t, pending.Code)
}

func TestSendLoginCode_UnknownUser(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)
	assert.ErrorIs(t, err, store.ErrNoUserWasFound)
}

func TestSendLoginCode_PendingCodeSkipsTelegram(t *testing.T) {
	client := &scriptClient{}
	fx := newServiceFixture(t, client)
	fx.registerUser(t)

	_, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)
	require.NoError(t, err)

	result, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)
	require.NoError(t, err)

	assert.Equal(t, StatusCachedCodeAvailable, result.Status)
	assert.True(t, result.Cached)
	assert.Equal(t, 1, client.sendCodes, "second send must not hit telegram")
}

func TestSendLoginCode_ForceNewBypassesCache(t *testing.T) {
	client := &scriptClient{}
	fx := newServiceFixture(t, client)
	fx.registerUser(t)

	_, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)
	require.NoError(t, err)

	result, err := fx.telegram.SendLoginCode(context.Background(), testPhone, true)
	require.NoError(t, err)

	assert.Equal(t, StatusCodeSent, result.Status)
	assert.Equal(t, 2, client.sendCodes)
}

func TestSendLoginCode_FloodWaitSurfacedNoRetry(t *testing.T) {
	client := &scriptClient{
		sendCodeErrs: []error{&telegram.FloodWaitError{Seconds: 3600}},
	}
	fx := newServiceFixture(t, client)
	fx.registerUser(t)

	_, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)

	fw, ok := telegram.AsFloodWait(err)
	require.True(t, ok, "flood wait must be surfaced, got %v", err)
	assert.Equal(t, 3600, fw.Seconds)
	assert.Equal(t, 1, client.sendCodes, "flood wait must not be retried")

	// The counter snaps to its limit with the telegram reset time.
	status, err := fx.sms.Status(context.Background(), testPhone)
	require.NoError(t, err)
	assert.Zero(t, status.Remaining)

	// And the failure shows up in the login metrics.
	snap := fx.metrics.Snapshot()
	assert.EqualValues(t, 1, snap.FailedRequests)
}

func TestSendLoginCode_DisconnectRecovery(t *testing.T) {
	client := &scriptClient{
		sendCodeErrs: []error{telegram.ErrTransportDisconnected},
	}
	fx := newServiceFixture(t, client)
	fx.registerUser(t)

	result, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)
	require.NoError(t, err, "one transport drop must be recovered")

	assert.Equal(t, StatusCodeSent, result.Status)
	assert.Equal(t, 2, client.sendCodes, "exactly one retry after eviction")
	assert.GreaterOrEqual(t, fx.factory.made, 2, "retry must rebuild the evicted client")

	snap := fx.metrics.Snapshot()
	assert.EqualValues(t, 1, snap.SuccessfulRequests)
}

func TestSendLoginCode_SMSLimit(t *testing.T) {
	client := &scriptClient{}
	fx := newServiceFixture(t, client)
	fx.registerUser(t)

	for i := 0; i < 5; i++ {
		_, err := fx.telegram.SendLoginCode(context.Background(), testPhone, true)
		require.NoError(t, err)
	}

	_, err := fx.telegram.SendLoginCode(context.Background(), testPhone, true)
	assert.ErrorIs(t, err, ErrSMSLimitExceeded)
	assert.Equal(t, 5, client.sendCodes)
}

func TestVerifyLoginCode_HappyPath(t *testing.T) {
	client := &scriptClient{}
	fx := newServiceFixture(t, client)
	registered := fx.registerUser(t)

	_, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)
	require.NoError(t, err)

	user, err := fx.telegram.VerifyLoginCode(context.Background(), testPhone, "12345", "")
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, user.UserID)
	assert.Equal(t, 1, client.signIns)

	// The session blob is persisted as ciphertext that unwraps back to the
	// client's exported bytes.
	stored, err := fx.users.FindUserByID(context.Background(), registered.UserID)
	require.NoError(t, err)
	require.True(t, stored.HasTelegramSession())
	assert.NotEqual(t, []byte("opaque-session"), stored.TelegramSession)

	plain, err := fx.cipher.Unwrap(stored.TelegramSession)
	require.NoError(t, err)
	assert.Equal(t, []byte("opaque-session"), plain)
}

func TestVerifyLoginCode_NoPendingCode(t *testing.T) {
	fx := newServiceFixture(t)
	fx.registerUser(t)

	_, err := fx.telegram.VerifyLoginCode(context.Background(), testPhone, "12345", "")
	assert.ErrorIs(t, err, telegram.ErrCodeExpired)
}

func TestVerifyLoginCode_2FA(t *testing.T) {
	client := &scriptClient{
		signInErrs: []error{telegram.ErrNeeds2FA, telegram.ErrNeeds2FA},
	}
	fx := newServiceFixture(t, client)
	fx.registerUser(t)

	_, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)
	require.NoError(t, err)

	// Without a password the flow stops at NEEDS_2FA.
	_, err = fx.telegram.VerifyLoginCode(context.Background(), testPhone, "12345", "")
	assert.ErrorIs(t, err, telegram.ErrNeeds2FA)

	// With the password the flow completes.
	_, err = fx.telegram.VerifyLoginCode(context.Background(), testPhone, "12345", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, 1, client.passwords)
}

func TestVerifyLoginCode_InvalidCodeBumpsAttempts(t *testing.T) {
	client := &scriptClient{
		signInErrs: []error{telegram.ErrCodeInvalid},
	}
	fx := newServiceFixture(t, client)
	fx.registerUser(t)

	_, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)
	require.NoError(t, err)

	_, err = fx.telegram.VerifyLoginCode(context.Background(), testPhone, "00000", "")
	assert.ErrorIs(t, err, telegram.ErrCodeInvalid)

	pending, ok, err := fx.codes.Get(context.Background(), testPhone)
	require.NoError(t, err)
	require.True(t, ok, "pending code survives an invalid attempt")
	assert.Equal(t, 1, pending.Attempts)
}

func TestCachedCodeReuse(t *testing.T) {
	client := &scriptClient{}
	fx := newServiceFixture(t, client)
	fx.registerUser(t)

	_, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)
	require.NoError(t, err)
	_, err = fx.telegram.VerifyLoginCode(context.Background(), testPhone, "12345", "")
	require.NoError(t, err)

	status, err := fx.telegram.CheckCachedCode(context.Background(), testPhone)
	require.NoError(t, err)
	assert.True(t, status.HasCachedCode)
	assert.Equal(t, "12345", status.CachedCode)

	// Verifying again with the cached code completes without another
	// sign-in call on the library.
	_, err = fx.telegram.VerifyLoginCode(context.Background(), testPhone, "12345", "")
	require.NoError(t, err)
	assert.Equal(t, 1, client.signIns)
	assert.Equal(t, 1, client.sendCodes)

	// use-cached-code succeeds with the right code and rejects a wrong one.
	_, err = fx.telegram.UseCachedCode(context.Background(), testPhone, "12345")
	require.NoError(t, err)
	_, err = fx.telegram.UseCachedCode(context.Background(), testPhone, "99999")
	assert.ErrorIs(t, err, ErrCachedCodeMismatch)
}

func TestClearCachedCode(t *testing.T) {
	fx := newServiceFixture(t, &scriptClient{})
	fx.registerUser(t)

	_, err := fx.telegram.SendLoginCode(context.Background(), testPhone, false)
	require.NoError(t, err)

	require.NoError(t, fx.telegram.ClearCachedCode(context.Background(), testPhone))

	status, err := fx.telegram.CheckCachedCode(context.Background(), testPhone)
	require.NoError(t, err)
	assert.False(t, status.HasCachedCode)
}

func TestGetChats_AuthorizationLostClearsSession(t *testing.T) {
	client := &scriptClient{
		authorized:  true,
		dialogsErrs: []error{telegram.ErrAuthorizationLost},
	}
	fx := newServiceFixture(t, client)
	user := fx.registerUser(t)

	// Seed a stored session blob so the clear is observable.
	wrapped, err := fx.cipher.Wrap([]byte("opaque-session"))
	require.NoError(t, err)
	require.NoError(t, fx.users.UpdateTelegramSession(context.Background(), user.UserID, wrapped))

	_, err = fx.telegram.GetChats(context.Background(), user.UserID)
	assert.ErrorIs(t, err, telegram.ErrAuthorizationLost)

	stored, err := fx.users.FindUserByID(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.False(t, stored.HasTelegramSession(), "session blob must be cleared")
	assert.Zero(t, fx.manager.Registry().Len(), "cached client must be evicted")
}

func TestGetChats_ReturnsDialogs(t *testing.T) {
	client := &scriptClient{
		authorized: true,
		dialogs: []models.Chat{
			{ID: -1001234567890, Title: "Crypto Signals", Type: models.ChatTypeChannel},
			{ID: 777, Title: "Alice", Type: models.ChatTypeUser},
		},
	}
	fx := newServiceFixture(t, client)
	user := fx.registerUser(t)

	chats, err := fx.telegram.GetChats(context.Background(), user.UserID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "Crypto Signals", chats[0].Title)

	// ResolveChat finds a dialog by id and rejects unknown ids.
	chat, err := fx.telegram.ResolveChat(context.Background(), user.UserID, -1001234567890)
	require.NoError(t, err)
	assert.Equal(t, models.ChatTypeChannel, chat.Type)

	_, err = fx.telegram.ResolveChat(context.Background(), user.UserID, 12345)
	assert.ErrorIs(t, err, ErrInvalidDataProvided)
}
