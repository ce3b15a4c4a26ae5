package store

import (
	"context"
	"time"

	"github.com/solanagram/solanagram/models"
)

// UserRepository persists platform accounts and their wrapped Telegram
// credentials.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByPhone(ctx context.Context, phone string) (models.User, error)
	FindUserByID(ctx context.Context, userID int64) (models.User, error)
	UpdateLastLogin(ctx context.Context, userID int64) error
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error

	// UpdateCredentials replaces api_id / wrapped api_hash and invalidates
	// the stored session blob in the same statement.
	UpdateCredentials(ctx context.Context, userID int64, apiID int, apiHashEncrypted []byte) error

	// UpdateTelegramSession persists the wrapped session blob after a
	// successful sign-in.
	UpdateTelegramSession(ctx context.Context, userID int64, sessionBlob []byte) error

	// ClearTelegramSession drops the stored blob after an authorization
	// loss. Idempotent.
	ClearTelegramSession(ctx context.Context, userID int64) error
}

// LoggingSessionRepository persists the per-(user, chat) logging worker rows.
type LoggingSessionRepository interface {
	// StartSession atomically verifies that no active session exists for
	// (user_id, chat_id) and reserves a new row in status=creating.
	// Returns ErrSessionAlreadyActive otherwise.
	StartSession(ctx context.Context, s models.LoggingSession) (models.LoggingSession, error)

	GetByID(ctx context.Context, userID, sessionID int64) (models.LoggingSession, error)
	ListByUser(ctx context.Context, userID int64) ([]models.LoggingSession, error)
	ActiveByChat(ctx context.Context, userID, chatID int64) (models.LoggingSession, error)
	ListByStatus(ctx context.Context, status models.ContainerStatus) ([]models.LoggingSession, error)

	// MarkRunning records the launched container and flips the row to
	// status=running.
	MarkRunning(ctx context.Context, sessionID int64, containerID string) error

	// MarkError deactivates the row with status=error and the failure text.
	MarkError(ctx context.Context, sessionID int64, lastError string) error

	// MarkStopped deactivates the row with status=stopped.
	MarkStopped(ctx context.Context, sessionID int64) error

	// Delete removes a reserved row whose launch failed before running.
	Delete(ctx context.Context, sessionID int64) error

	// CleanupOrphaned transitions rows stuck in status=error longer than
	// maxAge to status=removed, returning the number of rows affected.
	CleanupOrphaned(ctx context.Context, maxAge time.Duration) (int64, error)
}

// MessageLogRepository persists captured messages.
type MessageLogRepository interface {
	// Insert stores one captured message. A duplicate
	// (chat_id, message_id, logging_session_id) is an idempotent replay:
	// inserted=false, no error.
	Insert(ctx context.Context, m models.MessageLog) (inserted bool, err error)

	ListBySession(ctx context.Context, userID, sessionID int64, limit, offset int) (models.Page[models.MessageLog], error)

	// PurgeOlderThan deletes logs older than maxAge. Only used when the
	// operator enables the retention knob.
	PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}

// ListenerRepository persists listener rows and their elaborations.
type ListenerRepository interface {
	Create(ctx context.Context, l models.MessageListener) (models.MessageListener, error)
	GetByID(ctx context.Context, userID, listenerID int64) (models.MessageListener, error)
	ListByUser(ctx context.Context, userID int64) ([]models.MessageListener, error)
	ListByStatus(ctx context.Context, status models.ContainerStatus) ([]models.MessageListener, error)

	MarkRunning(ctx context.Context, listenerID int64, containerID string) error
	MarkError(ctx context.Context, listenerID int64, lastError string) error
	MarkStopped(ctx context.Context, listenerID int64) error
	Delete(ctx context.Context, listenerID int64) error
	CleanupOrphaned(ctx context.Context, maxAge time.Duration) (int64, error)

	// CreateElaboration inserts one rule. ErrElaborationExists on a name
	// clash, ErrRedirectExists on a second redirect for the listener.
	CreateElaboration(ctx context.Context, e models.MessageElaboration) (models.MessageElaboration, error)
	UpdateElaboration(ctx context.Context, e models.MessageElaboration) error
	DeleteElaboration(ctx context.Context, listenerID, elaborationID int64) error
	ListElaborations(ctx context.Context, listenerID int64) ([]models.MessageElaboration, error)
}

// SavedMessageRepository persists listener captures and extraction output.
type SavedMessageRepository interface {
	// Insert stores one captured message; duplicates on
	// (listener_id, message_id) are idempotent replays.
	Insert(ctx context.Context, m models.SavedMessage) (inserted bool, id int64, err error)

	ListByListener(ctx context.Context, listenerID int64, limit, offset int) (models.Page[models.SavedMessage], error)

	// InsertExtractedValue stores one extraction; duplicates on
	// (elaboration_id, message_id, rule_name, occurrence_index) are
	// idempotent replays.
	InsertExtractedValue(ctx context.Context, v models.ExtractedValue) (inserted bool, err error)

	// CleanupOld deletes saved messages older than maxAge (30 days in
	// production), cascading to their extracted values.
	CleanupOld(ctx context.Context, maxAge time.Duration) (int64, error)
}
