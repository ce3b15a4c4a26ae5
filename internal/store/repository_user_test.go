package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/models"
)

func newTestUserRepo(t *testing.T) (*userRepository, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	l := logger.Nop()
	repo := &userRepository{
		db:     &DB{DB: db, logger: l},
		logger: l,
	}
	return repo, mock, db
}

func pgError(code string) error {
	return &pgconn.PgError{Code: code}
}

func userRows(user models.User, now time.Time) *sqlmock.Rows {
	return sqlmock.
		NewRows([]string{"id", "phone", "password_hash", "api_id", "api_hash_encrypted", "telegram_session", "created_at", "last_login", "is_active"}).
		AddRow(1, user.Phone, user.PasswordHash, user.APIID, user.APIHashEncrypted, nil, now, nil, true)
}

func TestCreateUser_Success(t *testing.T) {
	repo, mock, db := newTestUserRepo(t)
	defer db.Close()

	ctx := context.Background()
	user := models.User{
		Phone:            "+391234567890",
		PasswordHash:     "$2a$10$hash",
		APIID:            25128314,
		APIHashEncrypted: []byte{0x01, 0xaa},
	}

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(user.Phone, user.PasswordHash, user.APIID, user.APIHashEncrypted).
		WillReturnRows(userRows(user, time.Now()))

	created, err := repo.CreateUser(ctx, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.UserID != 1 {
		t.Errorf("expected UserID=1, got %d", created.UserID)
	}
	if created.Phone != user.Phone {
		t.Errorf("expected phone %s, got %s", user.Phone, created.Phone)
	}
	if !created.IsActive {
		t.Error("expected new user to be active")
	}
}

func TestCreateUser_UniqueViolation(t *testing.T) {
	repo, mock, db := newTestUserRepo(t)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(pgError(pgerrcode.UniqueViolation))

	_, err := repo.CreateUser(context.Background(), models.User{Phone: "+391234567890"})
	if !errors.Is(err, ErrPhoneAlreadyExists) {
		t.Fatalf("expected ErrPhoneAlreadyExists, got %v", err)
	}
}

func TestCreateUser_UnexpectedDBError(t *testing.T) {
	repo, mock, db := newTestUserRepo(t)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(errors.New("db network error"))

	_, err := repo.CreateUser(context.Background(), models.User{Phone: "+391234567890"})
	if err == nil || !strings.Contains(err.Error(), "unexpected DB error") {
		t.Fatalf("expected wrapped unexpected DB error, got %v", err)
	}
}

func TestFindUserByPhone_NotFound(t *testing.T) {
	repo, mock, db := newTestUserRepo(t)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("+390000000000").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindUserByPhone(context.Background(), "+390000000000")
	if !errors.Is(err, ErrNoUserWasFound) {
		t.Fatalf("expected ErrNoUserWasFound, got %v", err)
	}
}

func TestFindUserByPhone_Success(t *testing.T) {
	repo, mock, db := newTestUserRepo(t)
	defer db.Close()

	user := models.User{Phone: "+391234567890", PasswordHash: "h", APIID: 7, APIHashEncrypted: []byte{0x01}}
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs(user.Phone).
		WillReturnRows(userRows(user, time.Now()))

	found, err := repo.FindUserByPhone(context.Background(), user.Phone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.APIID != 7 {
		t.Errorf("expected api_id=7, got %d", found.APIID)
	}
}

func TestUpdateCredentials_ClearsSession(t *testing.T) {
	repo, mock, db := newTestUserRepo(t)
	defer db.Close()

	mock.ExpectExec("UPDATE users SET (.+) telegram_session = NULL").
		WithArgs(int64(1), 25128314, []byte{0x01, 0xbb}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateCredentials(context.Background(), 1, 25128314, []byte{0x01, 0xbb}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateTelegramSession_UnknownUser(t *testing.T) {
	repo, mock, db := newTestUserRepo(t)
	defer db.Close()

	mock.ExpectExec("UPDATE users").
		WithArgs(int64(99), []byte{0x01}).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateTelegramSession(context.Background(), 99, []byte{0x01})
	if !errors.Is(err, ErrNoUserWasFound) {
		t.Fatalf("expected ErrNoUserWasFound, got %v", err)
	}
}
