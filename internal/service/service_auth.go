package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/solanagram/solanagram/internal/config"
	"github.com/solanagram/solanagram/internal/crypto"
	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/internal/utils"
	"github.com/solanagram/solanagram/models"
)

// phonePattern matches E.164 phone numbers (+391234567890).
var phonePattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// authService is the concrete implementation of AuthService.
// It handles account registration, platform-password verification, JWT
// lifecycle, and Telegram api-credential updates.
type authService struct {
	// userRepository is the data-access layer for accounts.
	userRepository store.UserRepository

	// cipher wraps api_hash values before they reach the database.
	cipher *crypto.Cipher

	// tokenSignKey is the HMAC secret used to sign and verify JWT tokens.
	tokenSignKey string

	// tokenIssuer is the "iss" claim embedded in every issued JWT.
	tokenIssuer string

	// tokenDuration controls how long a newly issued JWT remains valid.
	tokenDuration time.Duration

	logger *logger.Logger
}

// NewAuthService constructs an AuthService wired to the given UserRepository
// and populated with security parameters from cfg.
//
// The returned service is safe for concurrent use; all state is read-only
// after construction.
func NewAuthService(userRepository store.UserRepository, cipher *crypto.Cipher, cfg config.App, logger *logger.Logger) AuthService {
	return &authService{
		userRepository: userRepository,
		cipher:         cipher,
		tokenSignKey:   cfg.JWTSecretKey,
		tokenIssuer:    cfg.TokenIssuer,
		tokenDuration:  cfg.TokenDuration(),
		logger:         logger,
	}
}

// RegisterUser creates a new platform account with wrapped api credentials.
//
// Returns the persisted user (with a server-assigned UserID) or:
//   - ErrInvalidDataProvided / ErrInvalidPhone on validation failure.
//   - store.ErrPhoneAlreadyExists when the phone is taken.
func (a *authService) RegisterUser(ctx context.Context, phone, password string, apiID int, apiHash string) (models.User, error) {
	log := logger.FromContext(ctx)

	if phone == "" || password == "" || apiID <= 0 || apiHash == "" {
		return models.User{}, ErrInvalidDataProvided
	}
	if !phonePattern.MatchString(phone) {
		return models.User{}, ErrInvalidPhone
	}

	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("password hashing failed: %w", err)
	}

	wrappedHash, err := a.cipher.WrapString(apiHash)
	if err != nil {
		return models.User{}, fmt.Errorf("api hash wrapping failed: %w", err)
	}

	registeredUser, err := a.userRepository.CreateUser(ctx, models.User{
		Phone:            phone,
		PasswordHash:     passwordHash,
		APIID:            apiID,
		APIHashEncrypted: wrappedHash,
	})
	if err != nil {
		log.Err(err).Str("phone", phone).Msg("user creation ended with error")
		return models.User{}, fmt.Errorf("user creation ended with error: %w", err)
	}

	return registeredUser, nil
}

// Login verifies the platform password for phone and returns the account.
//
// Returns:
//   - ErrInvalidDataProvided when either field is empty.
//   - store.ErrNoUserWasFound when no account exists.
//   - ErrWrongPassword when the hash does not match.
//   - ErrUserInactive when the account is disabled.
func (a *authService) Login(ctx context.Context, phone, password string) (models.User, error) {
	log := logger.FromContext(ctx)

	if phone == "" || password == "" {
		return models.User{}, ErrInvalidDataProvided
	}

	foundUser, err := a.userRepository.FindUserByPhone(ctx, phone)
	if err != nil {
		log.Err(err).Str("phone", phone).Msg("user search by phone failed")
		return models.User{}, fmt.Errorf("user search by phone failed: %w", err)
	}

	if !utils.CheckPassword(foundUser.PasswordHash, password) {
		log.Warn().Int64("id", foundUser.UserID).Msg("wrong password")
		return models.User{}, ErrWrongPassword
	}
	if !foundUser.IsActive {
		return models.User{}, ErrUserInactive
	}

	return foundUser, nil
}

// ValidateSession confirms the JWT subject still exists and is active.
func (a *authService) ValidateSession(ctx context.Context, userID int64) (models.User, error) {
	user, err := a.userRepository.FindUserByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if !user.IsActive {
		return models.User{}, ErrUserInactive
	}
	return user, nil
}

// ChangePassword verifies the current password and rotates the hash.
func (a *authService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return ErrInvalidDataProvided
	}

	user, err := a.userRepository.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(user.PasswordHash, currentPassword) {
		return ErrWrongPassword
	}

	newHash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("password hashing failed: %w", err)
	}

	return a.userRepository.UpdatePasswordHash(ctx, userID, newHash)
}

// UpdateCredentials replaces the api_id/api_hash pair. The stored Telegram
// session is invalidated in the same statement: a blob created under the old
// credentials is no longer trustworthy.
func (a *authService) UpdateCredentials(ctx context.Context, userID int64, apiID int, apiHash string) error {
	if apiID <= 0 || apiHash == "" {
		return ErrInvalidDataProvided
	}

	wrappedHash, err := a.cipher.WrapString(apiHash)
	if err != nil {
		return fmt.Errorf("api hash wrapping failed: %w", err)
	}

	return a.userRepository.UpdateCredentials(ctx, userID, apiID, wrappedHash)
}

// CreateToken issues a signed JWT for the given user.
func (a *authService) CreateToken(ctx context.Context, user models.User) (models.Token, error) {
	token, err := utils.GenerateJWTToken(a.tokenIssuer, user.UserID, a.tokenDuration, a.tokenSignKey)
	if err != nil {
		return models.Token{}, fmt.Errorf("%w: %w", ErrTokenCreationFailed, err)
	}

	return token, nil
}

// ParseToken validates and parses a raw JWT string.
//
// Any validation failure (expired, wrong issuer, malformed) is normalised to
// ErrTokenIsExpiredOrInvalid so that callers do not need to inspect
// low-level JWT errors.
func (a *authService) ParseToken(ctx context.Context, tokenString string) (models.Token, error) {
	token, err := utils.ValidateAndParseJWTToken(tokenString, a.tokenSignKey, a.tokenIssuer)
	if err != nil {
		return models.Token{}, ErrTokenIsExpiredOrInvalid
	}

	return token, nil
}

// MarkLogin stamps last_login after a completed sign-in.
func (a *authService) MarkLogin(ctx context.Context, userID int64) {
	if err := a.userRepository.UpdateLastLogin(ctx, userID); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Int64("user_id", userID).Msg("last_login update failed")
	}
}
