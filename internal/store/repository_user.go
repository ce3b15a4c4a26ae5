package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/models"
)

// userRepository is the PostgreSQL-backed implementation of [UserRepository].
// It handles account creation, lookup, and credential updates against the
// "users" table.
//
// All methods obtain a context-scoped logger via [logger.FromContext] for
// structured, request-level tracing of database interactions.
type userRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewUserRepository constructs a [UserRepository] backed by the provided
// database connection and logger.
func NewUserRepository(db *DB, logger *logger.Logger) UserRepository {
	logger.Debug().Msg("creating user repository")
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	var lastLogin sql.NullTime
	err := row.Scan(&u.UserID, &u.Phone, &u.PasswordHash, &u.APIID, &u.APIHashEncrypted,
		&u.TelegramSession, &u.CreatedAt, &lastLogin, &u.IsActive)
	if err != nil {
		return models.User{}, err
	}
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	return u, nil
}

// CreateUser persists a new account and returns the fully populated
// [models.User] with server-assigned fields (UserID, CreatedAt).
//
// Error handling:
//   - PostgreSQL unique_violation (23505) → [ErrPhoneAlreadyExists].
//   - Any other driver-level error → wrapped as "unexpected DB error".
func (r *userRepository) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	log := logger.FromContext(ctx)

	row := r.db.QueryRowContext(ctx, createUser, user.Phone, user.PasswordHash, user.APIID, user.APIHashEncrypted)

	created, err := scanUser(row)
	if err != nil {
		switch postgresError(err) {
		case pgerrcode.UniqueViolation:
			return models.User{}, ErrPhoneAlreadyExists
		default:
			log.Err(err).Str("func", "*userRepository.CreateUser").Msg("error creating user")
			return models.User{}, fmt.Errorf("unexpected DB error: %w", err)
		}
	}

	return created, nil
}

// FindUserByPhone retrieves the account registered with the given phone.
// Returns [ErrNoUserWasFound] on an empty result.
func (r *userRepository) FindUserByPhone(ctx context.Context, phone string) (models.User, error) {
	log := logger.FromContext(ctx)

	row := r.db.QueryRowContext(ctx, findUserByPhone, phone)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNoUserWasFound
		}
		log.Err(err).Str("func", "*userRepository.FindUserByPhone").Msg("error scanning user")
		return models.User{}, fmt.Errorf("unexpected DB error: %w", err)
	}

	return user, nil
}

// FindUserByID retrieves the account with the given id.
// Returns [ErrNoUserWasFound] on an empty result.
func (r *userRepository) FindUserByID(ctx context.Context, userID int64) (models.User, error) {
	log := logger.FromContext(ctx)

	row := r.db.QueryRowContext(ctx, findUserByID, userID)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNoUserWasFound
		}
		log.Err(err).Str("func", "*userRepository.FindUserByID").Msg("error scanning user")
		return models.User{}, fmt.Errorf("unexpected DB error: %w", err)
	}

	return user, nil
}

// UpdateLastLogin stamps a successful login.
func (r *userRepository) UpdateLastLogin(ctx context.Context, userID int64) error {
	return r.exec(ctx, "UpdateLastLogin", updateLastLogin, userID)
}

// UpdatePasswordHash rotates the platform password hash.
func (r *userRepository) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	return r.exec(ctx, "UpdatePasswordHash", updatePasswordHash, userID, passwordHash)
}

// UpdateCredentials replaces api_id / wrapped api_hash and invalidates the
// stored session blob: a session created under the old credentials is no
// longer trustworthy.
func (r *userRepository) UpdateCredentials(ctx context.Context, userID int64, apiID int, apiHashEncrypted []byte) error {
	return r.exec(ctx, "UpdateCredentials", updateCredentials, userID, apiID, apiHashEncrypted)
}

// UpdateTelegramSession persists the wrapped session blob.
func (r *userRepository) UpdateTelegramSession(ctx context.Context, userID int64, sessionBlob []byte) error {
	return r.exec(ctx, "UpdateTelegramSession", updateTelegramSession, userID, sessionBlob)
}

// ClearTelegramSession drops the stored blob after an authorization loss.
func (r *userRepository) ClearTelegramSession(ctx context.Context, userID int64) error {
	return r.exec(ctx, "ClearTelegramSession", clearTelegramSession, userID)
}

func (r *userRepository) exec(ctx context.Context, name, query string, args ...any) error {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*userRepository."+name).Msg("error executing statement")
		return fmt.Errorf("unexpected DB error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unexpected DB error: %w", err)
	}
	if affected == 0 {
		return ErrNoUserWasFound
	}

	return nil
}
