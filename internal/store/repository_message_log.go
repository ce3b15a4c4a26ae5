package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/models"
)

// messageLogRepository is the PostgreSQL-backed implementation of
// [MessageLogRepository]. Inserts come from worker containers; reads serve
// the HTTP surface.
type messageLogRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewMessageLogRepository constructs a [MessageLogRepository].
func NewMessageLogRepository(db *DB, logger *logger.Logger) MessageLogRepository {
	logger.Debug().Msg("creating message log repository")
	return &messageLogRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores one captured message with ON CONFLICT DO NOTHING on
// (chat_id, message_id, logging_session_id). A zero affected-row count is a
// replay, not an error; the session counters are bumped only on real
// inserts.
func (r *messageLogRepository) Insert(ctx context.Context, m models.MessageLog) (bool, error) {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, insertMessageLog,
		m.UserID, m.ChatID, m.ChatTitle, m.ChatUsername, m.ChatType,
		m.MessageID, m.SenderID, m.SenderName, m.SenderUsername,
		m.MessageText, m.MessageType, m.MediaFileID, m.MessageDate, m.LoggingSessionID)
	if err != nil {
		log.Err(err).Str("func", "*messageLogRepository.Insert").Msg("insert failed")
		return false, fmt.Errorf("unexpected DB error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unexpected DB error: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := r.db.ExecContext(ctx, bumpSessionCounters, m.LoggingSessionID); err != nil {
		// Counter drift is tolerable; the captured message is what matters.
		log.Warn().Err(err).Int64("session_id", m.LoggingSessionID).Msg("counter bump failed")
	}

	return true, nil
}

// ListBySession returns one page of captured messages, oldest first, with
// the total count for pagination. The user_id filter on message_logs scopes
// the read to the owning user.
func (r *messageLogRepository) ListBySession(ctx context.Context, userID, sessionID int64, limit, offset int) (models.Page[models.MessageLog], error) {
	log := logger.FromContext(ctx)

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	page := models.Page[models.MessageLog]{Limit: limit, Offset: offset}

	countQuery, countArgs, err := sq.Select("COUNT(*)").
		From("message_logs").
		Where(sq.Eq{"logging_session_id": sessionID, "user_id": userID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return page, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	query, args, err := sq.Select(
		"id", "user_id", "chat_id", "chat_title", "chat_username", "chat_type",
		"message_id", "sender_id", "sender_name", "sender_username",
		"message_text", "message_type", "media_file_id", "message_date", "logged_at", "logging_session_id").
		From("message_logs").
		Where(sq.Eq{"logging_session_id": sessionID, "user_id": userID}).
		OrderBy("id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return page, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*messageLogRepository.ListBySession").Msg("query failed")
		return page, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.MessageLog
		err := rows.Scan(&m.ID, &m.UserID, &m.ChatID, &m.ChatTitle, &m.ChatUsername, &m.ChatType,
			&m.MessageID, &m.SenderID, &m.SenderName, &m.SenderUsername,
			&m.MessageText, &m.MessageType, &m.MediaFileID, &m.MessageDate, &m.LoggedAt, &m.LoggingSessionID)
		if err != nil {
			return page, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		page.Items = append(page.Items, m)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return page, nil
}

// PurgeOlderThan deletes logs past the operator-configured retention.
func (r *messageLogRepository) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, purgeMessageLogs, intervalArg(maxAge))
	if err != nil {
		return 0, fmt.Errorf("unexpected DB error: %w", err)
	}
	return res.RowsAffected()
}
