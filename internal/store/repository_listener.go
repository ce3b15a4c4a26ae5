package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/models"
)

// listenerRepository is the PostgreSQL-backed implementation of
// [ListenerRepository], covering listener rows and their elaborations.
type listenerRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewListenerRepository constructs a [ListenerRepository].
func NewListenerRepository(db *DB, logger *logger.Logger) ListenerRepository {
	logger.Debug().Msg("creating listener repository")
	return &listenerRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a listener row. The (user_id, source_chat_id) uniqueness
// holds regardless of is_active, so a unique violation always maps to
// [ErrListenerAlreadyExists].
func (r *listenerRepository) Create(ctx context.Context, l models.MessageListener) (models.MessageListener, error) {
	log := logger.FromContext(ctx)

	row := r.db.QueryRowContext(ctx, insertListener,
		l.UserID, l.SourceChatID, l.SourceChatTitle, l.SourceChatUsername, l.SourceChatType, l.ContainerName)
	if err := row.Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt); err != nil {
		if postgresError(err) == pgerrcode.UniqueViolation {
			return models.MessageListener{}, ErrListenerAlreadyExists
		}
		log.Err(err).Str("func", "*listenerRepository.Create").Msg("insert failed")
		return models.MessageListener{}, fmt.Errorf("unexpected DB error: %w", err)
	}

	l.IsActive = true
	l.ContainerStatus = models.ContainerStatusCreating
	return l, nil
}

func scanListener(row interface{ Scan(...any) error }) (models.MessageListener, error) {
	var l models.MessageListener
	var containerID, lastError sql.NullString
	var stoppedAt, lastMessageAt sql.NullTime

	err := row.Scan(&l.ID, &l.UserID, &l.SourceChatID, &l.SourceChatTitle, &l.SourceChatUsername, &l.SourceChatType,
		&l.IsActive, &l.ContainerName, &containerID, &l.ContainerStatus,
		&l.MessagesSaved, &l.ErrorsCount, &lastError,
		&l.CreatedAt, &l.UpdatedAt, &stoppedAt, &lastMessageAt)
	if err != nil {
		return models.MessageListener{}, err
	}

	l.ContainerID = containerID.String
	l.LastError = lastError.String
	if stoppedAt.Valid {
		l.StoppedAt = &stoppedAt.Time
	}
	if lastMessageAt.Valid {
		l.LastMessageAt = &lastMessageAt.Time
	}
	return l, nil
}

// GetByID retrieves one listener scoped to its owner, with elaborations
// attached in priority order.
func (r *listenerRepository) GetByID(ctx context.Context, userID, listenerID int64) (models.MessageListener, error) {
	query, args, err := sq.Select(listenerColumns).
		From("message_listeners").
		Where(sq.Eq{"id": listenerID, "user_id": userID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return models.MessageListener{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	l, err := scanListener(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.MessageListener{}, ErrListenerNotFound
		}
		return models.MessageListener{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	l.Elaborations, err = r.ListElaborations(ctx, l.ID)
	if err != nil {
		return models.MessageListener{}, err
	}
	return l, nil
}

// ListByUser returns all listener rows of one owner, newest first.
func (r *listenerRepository) ListByUser(ctx context.Context, userID int64) ([]models.MessageListener, error) {
	query, args, err := sq.Select(listenerColumns).
		From("message_listeners").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return r.list(ctx, query, args...)
}

// ListByStatus returns all listener rows in the given container status.
func (r *listenerRepository) ListByStatus(ctx context.Context, status models.ContainerStatus) ([]models.MessageListener, error) {
	query, args, err := sq.Select(listenerColumns).
		From("message_listeners").
		Where(sq.Eq{"container_status": status}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return r.list(ctx, query, args...)
}

func (r *listenerRepository) list(ctx context.Context, query string, args ...any) ([]models.MessageListener, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*listenerRepository.list").Msg("query failed")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var listeners []models.MessageListener
	for rows.Next() {
		l, err := scanListener(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		listeners = append(listeners, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return listeners, nil
}

// MarkRunning records the launched container id.
func (r *listenerRepository) MarkRunning(ctx context.Context, listenerID int64, containerID string) error {
	return r.exec(ctx, "MarkRunning", markListenerRunning, listenerID, containerID)
}

// MarkError deactivates the row with the failure text.
func (r *listenerRepository) MarkError(ctx context.Context, listenerID int64, lastError string) error {
	return r.exec(ctx, "MarkError", markListenerError, listenerID, lastError)
}

// MarkStopped deactivates the row after a clean stop.
func (r *listenerRepository) MarkStopped(ctx context.Context, listenerID int64) error {
	return r.exec(ctx, "MarkStopped", markListenerStopped, listenerID)
}

// Delete removes a listener row and, by cascade, its elaborations and saved
// messages.
func (r *listenerRepository) Delete(ctx context.Context, listenerID int64) error {
	return r.exec(ctx, "Delete", deleteListener, listenerID)
}

// CleanupOrphaned retires error rows older than maxAge.
func (r *listenerRepository) CleanupOrphaned(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, cleanupOrphanedListeners, intervalArg(maxAge))
	if err != nil {
		return 0, fmt.Errorf("unexpected DB error: %w", err)
	}
	return res.RowsAffected()
}

// CreateElaboration inserts one rule. Two uniqueness violations can fire:
// the (listener_id, name) key and the partial redirect index; they are told
// apart by the constraint name on the driver error.
func (r *listenerRepository) CreateElaboration(ctx context.Context, e models.MessageElaboration) (models.MessageElaboration, error) {
	log := logger.FromContext(ctx)

	configRaw, err := e.Config.Value()
	if err != nil {
		return models.MessageElaboration{}, fmt.Errorf("marshal elaboration config: %w", err)
	}

	row := r.db.QueryRowContext(ctx, insertElaboration,
		e.ListenerID, e.Type, e.Name, configRaw, e.IsActive, e.Priority)
	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if postgresError(err) == pgerrcode.UniqueViolation {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_elaborations_redirect" {
				return models.MessageElaboration{}, ErrRedirectExists
			}
			return models.MessageElaboration{}, ErrElaborationExists
		}
		log.Err(err).Str("func", "*listenerRepository.CreateElaboration").Msg("insert failed")
		return models.MessageElaboration{}, fmt.Errorf("unexpected DB error: %w", err)
	}

	return e, nil
}

// UpdateElaboration rewrites a rule's mutable fields.
func (r *listenerRepository) UpdateElaboration(ctx context.Context, e models.MessageElaboration) error {
	configRaw, err := e.Config.Value()
	if err != nil {
		return fmt.Errorf("marshal elaboration config: %w", err)
	}

	res, err := r.db.ExecContext(ctx, updateElaboration,
		e.ID, e.ListenerID, e.Name, configRaw, e.IsActive, e.Priority)
	if err != nil {
		if postgresError(err) == pgerrcode.UniqueViolation {
			return ErrElaborationExists
		}
		return fmt.Errorf("unexpected DB error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unexpected DB error: %w", err)
	}
	if affected == 0 {
		return ErrElaborationNotFound
	}
	return nil
}

// DeleteElaboration removes one rule.
func (r *listenerRepository) DeleteElaboration(ctx context.Context, listenerID, elaborationID int64) error {
	res, err := r.db.ExecContext(ctx, deleteElaboration, listenerID, elaborationID)
	if err != nil {
		return fmt.Errorf("unexpected DB error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unexpected DB error: %w", err)
	}
	if affected == 0 {
		return ErrElaborationNotFound
	}
	return nil
}

// ListElaborations returns the rules of one listener in priority order.
func (r *listenerRepository) ListElaborations(ctx context.Context, listenerID int64) ([]models.MessageElaboration, error) {
	log := logger.FromContext(ctx)

	rows, err := r.db.QueryContext(ctx, listElaborations, listenerID)
	if err != nil {
		log.Err(err).Str("func", "*listenerRepository.ListElaborations").Msg("query failed")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var elaborations []models.MessageElaboration
	for rows.Next() {
		var e models.MessageElaboration
		var configRaw []byte
		err := rows.Scan(&e.ID, &e.ListenerID, &e.Type, &e.Name, &configRaw, &e.IsActive, &e.Priority,
			&e.MatchesCount, &e.ErrorsCount, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		if err := e.Config.ScanConfig(configRaw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		elaborations = append(elaborations, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return elaborations, nil
}

func (r *listenerRepository) exec(ctx context.Context, name, query string, args ...any) error {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*listenerRepository."+name).Msg("error executing statement")
		return fmt.Errorf("unexpected DB error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unexpected DB error: %w", err)
	}
	if affected == 0 {
		return ErrListenerNotFound
	}
	return nil
}
