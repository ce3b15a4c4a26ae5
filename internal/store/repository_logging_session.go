package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/models"
)

// loggingSessionRepository is the PostgreSQL-backed implementation of
// [LoggingSessionRepository].
type loggingSessionRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewLoggingSessionRepository constructs a [LoggingSessionRepository].
func NewLoggingSessionRepository(db *DB, logger *logger.Logger) LoggingSessionRepository {
	logger.Debug().Msg("creating logging session repository")
	return &loggingSessionRepository{
		db:     db,
		logger: logger,
	}
}

// StartSession reserves a new session row inside one transaction:
// SELECT … FOR UPDATE on any active row for (user, chat), fail
// [ErrSessionAlreadyActive] when present, otherwise INSERT in
// status=creating. The partial unique index backs the same invariant, so a
// raced insert degrades to a unique violation mapped to the same error.
func (r *loggingSessionRepository) StartSession(ctx context.Context, s models.LoggingSession) (models.LoggingSession, error) {
	log := logger.FromContext(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).Str("func", "*loggingSessionRepository.StartSession").Msg("begin failed")
		return models.LoggingSession{}, fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID int64
	err = tx.QueryRowContext(ctx, selectActiveSessionForUpdate, s.UserID, s.ChatID).Scan(&existingID)
	switch {
	case err == nil:
		return models.LoggingSession{}, ErrSessionAlreadyActive
	case !errors.Is(err, sql.ErrNoRows):
		log.Err(err).Str("func", "*loggingSessionRepository.StartSession").Msg("active check failed")
		return models.LoggingSession{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	row := tx.QueryRowContext(ctx, insertLoggingSession,
		s.UserID, s.ChatID, s.ChatTitle, s.ChatUsername, s.ChatType, s.ContainerName)
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if postgresError(err) == pgerrcode.UniqueViolation {
			return models.LoggingSession{}, ErrSessionAlreadyActive
		}
		log.Err(err).Str("func", "*loggingSessionRepository.StartSession").Msg("insert failed")
		return models.LoggingSession{}, fmt.Errorf("unexpected DB error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.LoggingSession{}, fmt.Errorf("%w: %w", ErrCommittingTransaction, err)
	}

	s.IsActive = true
	s.ContainerStatus = models.ContainerStatusCreating
	return s, nil
}

func scanLoggingSession(row interface{ Scan(...any) error }) (models.LoggingSession, error) {
	var s models.LoggingSession
	var containerID, lastError sql.NullString
	var stoppedAt, lastMessageAt sql.NullTime

	err := row.Scan(&s.ID, &s.UserID, &s.ChatID, &s.ChatTitle, &s.ChatUsername, &s.ChatType,
		&s.IsActive, &s.ContainerName, &containerID, &s.ContainerStatus,
		&s.MessagesLogged, &s.ErrorsCount, &lastError,
		&s.CreatedAt, &s.UpdatedAt, &stoppedAt, &lastMessageAt)
	if err != nil {
		return models.LoggingSession{}, err
	}

	s.ContainerID = containerID.String
	s.LastError = lastError.String
	if stoppedAt.Valid {
		s.StoppedAt = &stoppedAt.Time
	}
	if lastMessageAt.Valid {
		s.LastMessageAt = &lastMessageAt.Time
	}
	return s, nil
}

// GetByID retrieves one session scoped to its owner.
func (r *loggingSessionRepository) GetByID(ctx context.Context, userID, sessionID int64) (models.LoggingSession, error) {
	query, args, err := sq.Select(loggingSessionColumns).
		From("logging_sessions").
		Where(sq.Eq{"id": sessionID, "user_id": userID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.LoggingSession{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	s, err := scanLoggingSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.LoggingSession{}, ErrSessionNotFound
		}
		return models.LoggingSession{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return s, nil
}

// ActiveByChat retrieves the active session for (user, chat), or
// [ErrSessionNotFound].
func (r *loggingSessionRepository) ActiveByChat(ctx context.Context, userID, chatID int64) (models.LoggingSession, error) {
	query, args, err := sq.Select(loggingSessionColumns).
		From("logging_sessions").
		Where(sq.Eq{"user_id": userID, "chat_id": chatID, "is_active": true}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.LoggingSession{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	s, err := scanLoggingSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.LoggingSession{}, ErrSessionNotFound
		}
		return models.LoggingSession{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return s, nil
}

// ListByUser returns all session rows of one owner, newest first.
func (r *loggingSessionRepository) ListByUser(ctx context.Context, userID int64) ([]models.LoggingSession, error) {
	query, args, err := sq.Select(loggingSessionColumns).
		From("logging_sessions").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return r.list(ctx, query, args...)
}

// ListByStatus returns all session rows in the given container status,
// used by the reap loop to cross-check running rows.
func (r *loggingSessionRepository) ListByStatus(ctx context.Context, status models.ContainerStatus) ([]models.LoggingSession, error) {
	query, args, err := sq.Select(loggingSessionColumns).
		From("logging_sessions").
		Where(sq.Eq{"container_status": status}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return r.list(ctx, query, args...)
}

func (r *loggingSessionRepository) list(ctx context.Context, query string, args ...any) ([]models.LoggingSession, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*loggingSessionRepository.list").Msg("query failed")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var sessions []models.LoggingSession
	for rows.Next() {
		s, err := scanLoggingSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return sessions, nil
}

// MarkRunning records the launched container id.
func (r *loggingSessionRepository) MarkRunning(ctx context.Context, sessionID int64, containerID string) error {
	return r.exec(ctx, "MarkRunning", markSessionRunning, sessionID, containerID)
}

// MarkError deactivates the row with the failure text.
func (r *loggingSessionRepository) MarkError(ctx context.Context, sessionID int64, lastError string) error {
	return r.exec(ctx, "MarkError", markSessionError, sessionID, lastError)
}

// MarkStopped deactivates the row after a clean stop.
func (r *loggingSessionRepository) MarkStopped(ctx context.Context, sessionID int64) error {
	return r.exec(ctx, "MarkStopped", markSessionStopped, sessionID)
}

// Delete removes a reserved row whose launch never succeeded.
func (r *loggingSessionRepository) Delete(ctx context.Context, sessionID int64) error {
	return r.exec(ctx, "Delete", deleteLoggingSession, sessionID)
}

// CleanupOrphaned retires error rows older than maxAge.
func (r *loggingSessionRepository) CleanupOrphaned(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, cleanupOrphanedSessions, intervalArg(maxAge))
	if err != nil {
		return 0, fmt.Errorf("unexpected DB error: %w", err)
	}
	return res.RowsAffected()
}

func (r *loggingSessionRepository) exec(ctx context.Context, name, query string, args ...any) error {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*loggingSessionRepository."+name).Msg("error executing statement")
		return fmt.Errorf("unexpected DB error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unexpected DB error: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// intervalArg renders a duration as a Postgres interval literal.
func intervalArg(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d.Seconds()))
}
