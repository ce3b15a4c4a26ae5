package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solanagram/solanagram/internal/config"
	"github.com/solanagram/solanagram/internal/crypto"
	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/store"
)

func newAuthFixture(t *testing.T) (AuthService, *memoryUserRepo, *crypto.Cipher) {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	cipher, err := crypto.NewCipher(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)

	users := newMemoryUserRepo()
	auth := NewAuthService(users, cipher, config.App{
		JWTSecretKey:   "jwt-secret",
		TokenIssuer:    "solanagram",
		SessionTimeout: 3600,
	}, logger.Nop())

	return auth, users, cipher
}

func TestRegisterUser_Success(t *testing.T) {
	auth, _, cipher := newAuthFixture(t)

	user, err := auth.RegisterUser(context.Background(), testPhone, "pw", 25128314, "deadbeefdeadbeef")
	require.NoError(t, err)

	assert.NotZero(t, user.UserID)
	assert.Equal(t, testPhone, user.Phone)
	assert.NotEqual(t, "pw", user.PasswordHash)

	// The api hash is stored wrapped and unwraps back to the input.
	assert.NotContains(t, string(user.APIHashEncrypted), "deadbeef")
	plain, err := cipher.UnwrapString(user.APIHashEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "deadbeefdeadbeef", plain)
}

func TestRegisterUser_Validation(t *testing.T) {
	auth, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := auth.RegisterUser(ctx, "", "pw", 1, "h")
	assert.ErrorIs(t, err, ErrInvalidDataProvided)

	_, err = auth.RegisterUser(ctx, "not-a-phone", "pw", 1, "h")
	assert.ErrorIs(t, err, ErrInvalidPhone)

	_, err = auth.RegisterUser(ctx, testPhone, "pw", 0, "h")
	assert.ErrorIs(t, err, ErrInvalidDataProvided)
}

func TestRegisterUser_DuplicatePhone(t *testing.T) {
	auth, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := auth.RegisterUser(ctx, testPhone, "pw", 1, "h")
	require.NoError(t, err)

	_, err = auth.RegisterUser(ctx, testPhone, "pw2", 2, "h2")
	assert.ErrorIs(t, err, store.ErrPhoneAlreadyExists)
}

func TestLogin_WrongPassword(t *testing.T) {
	auth, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := auth.RegisterUser(ctx, testPhone, "pw", 1, "h")
	require.NoError(t, err)

	_, err = auth.Login(ctx, testPhone, "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)

	user, err := auth.Login(ctx, testPhone, "pw")
	require.NoError(t, err)
	assert.Equal(t, testPhone, user.Phone)
}

func TestLogin_UnknownUser(t *testing.T) {
	auth, _, _ := newAuthFixture(t)

	_, err := auth.Login(context.Background(), testPhone, "pw")
	assert.ErrorIs(t, err, store.ErrNoUserWasFound)
}

func TestTokenRoundTrip(t *testing.T) {
	auth, _, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := auth.RegisterUser(ctx, testPhone, "pw", 1, "h")
	require.NoError(t, err)

	token, err := auth.CreateToken(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, token.SignedString)

	parsed, err := auth.ParseToken(ctx, token.SignedString)
	require.NoError(t, err)
	assert.Equal(t, user.UserID, parsed.UserID)
}

func TestParseToken_Garbage(t *testing.T) {
	auth, _, _ := newAuthFixture(t)

	_, err := auth.ParseToken(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrTokenIsExpiredOrInvalid)
}

func TestChangePassword(t *testing.T) {
	auth, _, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := auth.RegisterUser(ctx, testPhone, "pw", 1, "h")
	require.NoError(t, err)

	err = auth.ChangePassword(ctx, user.UserID, "wrong", "new")
	assert.ErrorIs(t, err, ErrWrongPassword)

	require.NoError(t, auth.ChangePassword(ctx, user.UserID, "pw", "new"))

	_, err = auth.Login(ctx, testPhone, "new")
	require.NoError(t, err)
}

func TestUpdateCredentials_InvalidatesSession(t *testing.T) {
	auth, users, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := auth.RegisterUser(ctx, testPhone, "pw", 1, "h")
	require.NoError(t, err)
	require.NoError(t, users.UpdateTelegramSession(ctx, user.UserID, []byte{0x01, 0x02}))

	require.NoError(t, auth.UpdateCredentials(ctx, user.UserID, 2, "newhash"))

	updated, err := users.FindUserByID(ctx, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.APIID)
	assert.False(t, updated.HasTelegramSession(), "credential update must invalidate the stored session")
}

func TestValidateSession_InactiveUser(t *testing.T) {
	auth, users, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := auth.RegisterUser(ctx, testPhone, "pw", 1, "h")
	require.NoError(t, err)

	users.mu.Lock()
	users.users[user.UserID].IsActive = false
	users.mu.Unlock()

	_, err = auth.ValidateSession(ctx, user.UserID)
	assert.ErrorIs(t, err, ErrUserInactive)
}
