package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/models"
)

// savedMessageRepository is the PostgreSQL-backed implementation of
// [SavedMessageRepository].
type savedMessageRepository struct {
	logger *logger.Logger
	db     *DB
}

// NewSavedMessageRepository constructs a [SavedMessageRepository].
func NewSavedMessageRepository(db *DB, logger *logger.Logger) SavedMessageRepository {
	logger.Debug().Msg("creating saved message repository")
	return &savedMessageRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores one captured message. The RETURNING id is only produced on a
// real insert; a conflict yields sql.ErrNoRows which is the idempotent
// replay signal.
func (r *savedMessageRepository) Insert(ctx context.Context, m models.SavedMessage) (bool, int64, error) {
	log := logger.FromContext(ctx)

	var data any
	if len(m.Data) > 0 {
		data = []byte(m.Data)
	}

	var id int64
	err := r.db.QueryRowContext(ctx, insertSavedMessage,
		m.ListenerID, m.MessageID, m.Text, data, m.SenderID, m.SenderName, m.MessageDate).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		log.Err(err).Str("func", "*savedMessageRepository.Insert").Msg("insert failed")
		return false, 0, fmt.Errorf("unexpected DB error: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, bumpListenerCounters, m.ListenerID); err != nil {
		log.Warn().Err(err).Int64("listener_id", m.ListenerID).Msg("counter bump failed")
	}

	return true, id, nil
}

// ListByListener returns one page of saved messages, newest first.
func (r *savedMessageRepository) ListByListener(ctx context.Context, listenerID int64, limit, offset int) (models.Page[models.SavedMessage], error) {
	log := logger.FromContext(ctx)

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	page := models.Page[models.SavedMessage]{Limit: limit, Offset: offset}

	countQuery, countArgs, err := sq.Select("COUNT(*)").
		From("saved_messages").
		Where(sq.Eq{"listener_id": listenerID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return page, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	query, args, err := sq.Select("id", "listener_id", "message_id", "text", "data",
		"sender_id", "sender_name", "message_date", "saved_at").
		From("saved_messages").
		Where(sq.Eq{"listener_id": listenerID}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return page, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", "*savedMessageRepository.ListByListener").Msg("query failed")
		return page, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.SavedMessage
		var data []byte
		var senderName sql.NullString
		err := rows.Scan(&m.ID, &m.ListenerID, &m.MessageID, &m.Text, &data,
			&m.SenderID, &senderName, &m.MessageDate, &m.SavedAt)
		if err != nil {
			return page, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		m.Data = data
		m.SenderName = senderName.String
		page.Items = append(page.Items, m)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return page, nil
}

// InsertExtractedValue stores one extraction with ON CONFLICT DO NOTHING.
func (r *savedMessageRepository) InsertExtractedValue(ctx context.Context, v models.ExtractedValue) (bool, error) {
	log := logger.FromContext(ctx)

	res, err := r.db.ExecContext(ctx, insertExtractedValue,
		v.ElaborationID, v.MessageID, v.RuleName, v.ExtractedValue, v.OccurrenceIndex)
	if err != nil {
		log.Err(err).Str("func", "*savedMessageRepository.InsertExtractedValue").Msg("insert failed")
		return false, fmt.Errorf("unexpected DB error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unexpected DB error: %w", err)
	}
	return affected > 0, nil
}

// CleanupOld deletes saved messages past the retention window; their
// extracted values follow by cascade.
func (r *savedMessageRepository) CleanupOld(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, cleanupOldSavedMessages, intervalArg(maxAge))
	if err != nil {
		return 0, fmt.Errorf("unexpected DB error: %w", err)
	}
	return res.RowsAffected()
}
