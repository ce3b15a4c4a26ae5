package service

import (
	"context"

	"github.com/solanagram/solanagram/internal/crypto"
	"github.com/solanagram/solanagram/internal/store"
)

// StoreCredentialSource adapts the user repository to the client manager's
// credential port: it unwraps api_hash and the session blob into memory on
// demand. Plaintext never leaves the call path.
type StoreCredentialSource struct {
	Users  store.UserRepository
	Cipher *crypto.Cipher

	// DefaultAPIID / DefaultAPIHash are the optional platform-wide
	// fallback pair (TELEGRAM_API_ID / TELEGRAM_API_HASH).
	DefaultAPIID   int
	DefaultAPIHash string
}

// TelegramCredentials implements session.CredentialSource.
func (s *StoreCredentialSource) TelegramCredentials(ctx context.Context, phone string) (int, string, []byte, error) {
	user, err := s.Users.FindUserByPhone(ctx, phone)
	if err != nil {
		return 0, "", nil, err
	}
	if !user.HasAPICredentials() {
		if s.DefaultAPIID == 0 || s.DefaultAPIHash == "" {
			return 0, "", nil, ErrMissingCredentials
		}
		var sessionBlob []byte
		if user.HasTelegramSession() {
			sessionBlob, err = s.Cipher.Unwrap(user.TelegramSession)
			if err != nil {
				return 0, "", nil, err
			}
		}
		return s.DefaultAPIID, s.DefaultAPIHash, sessionBlob, nil
	}

	apiHash, err := s.Cipher.UnwrapString(user.APIHashEncrypted)
	if err != nil {
		return 0, "", nil, err
	}

	var sessionBlob []byte
	if user.HasTelegramSession() {
		sessionBlob, err = s.Cipher.Unwrap(user.TelegramSession)
		if err != nil {
			return 0, "", nil, err
		}
	}

	return user.APIID, apiHash, sessionBlob, nil
}
