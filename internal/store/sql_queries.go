package store

const (
	createUser = `INSERT INTO users (phone, password_hash, api_id, api_hash_encrypted)
    VALUES ($1, $2, $3, $4)
    RETURNING id, phone, password_hash, api_id, api_hash_encrypted, telegram_session, created_at, last_login, is_active;`

	findUserByPhone = `SELECT id, phone, password_hash, api_id, api_hash_encrypted, telegram_session, created_at, last_login, is_active
    FROM users
    WHERE phone = $1;`

	findUserByID = `SELECT id, phone, password_hash, api_id, api_hash_encrypted, telegram_session, created_at, last_login, is_active
    FROM users
    WHERE id = $1;`

	updateLastLogin = `UPDATE users SET last_login = NOW() WHERE id = $1;`

	updatePasswordHash = `UPDATE users SET password_hash = $2 WHERE id = $1;`

	updateCredentials = `UPDATE users
    SET api_id = $2, api_hash_encrypted = $3, telegram_session = NULL
    WHERE id = $1;`

	updateTelegramSession = `UPDATE users SET telegram_session = $2 WHERE id = $1;`

	clearTelegramSession = `UPDATE users SET telegram_session = NULL WHERE id = $1;`
)

const (
	// selectActiveSessionForUpdate serializes concurrent start attempts for
	// one (user, chat): the row lock makes the duplicate check race-free.
	selectActiveSessionForUpdate = `SELECT id FROM logging_sessions
    WHERE user_id = $1 AND chat_id = $2 AND is_active
    FOR UPDATE;`

	insertLoggingSession = `INSERT INTO logging_sessions
    (user_id, chat_id, chat_title, chat_username, chat_type, is_active, container_name, container_status)
    VALUES ($1, $2, $3, $4, $5, TRUE, $6, 'creating')
    RETURNING id, created_at, updated_at;`

	loggingSessionColumns = `id, user_id, chat_id, chat_title, chat_username, chat_type, is_active,
    container_name, container_id, container_status, messages_logged, errors_count, last_error,
    created_at, updated_at, stopped_at, last_message_at`

	markSessionRunning = `UPDATE logging_sessions
    SET container_id = $2, container_status = 'running'
    WHERE id = $1;`

	markSessionError = `UPDATE logging_sessions
    SET is_active = FALSE, container_status = 'error', last_error = $2, errors_count = errors_count + 1
    WHERE id = $1;`

	markSessionStopped = `UPDATE logging_sessions
    SET is_active = FALSE, container_status = 'stopped', stopped_at = NOW()
    WHERE id = $1;`

	deleteLoggingSession = `DELETE FROM logging_sessions WHERE id = $1;`

	cleanupOrphanedSessions = `UPDATE logging_sessions
    SET container_status = 'removed'
    WHERE container_status = 'error' AND updated_at < NOW() - $1::interval;`
)

const (
	insertMessageLog = `INSERT INTO message_logs
    (user_id, chat_id, chat_title, chat_username, chat_type, message_id, sender_id, sender_name,
     sender_username, message_text, message_type, media_file_id, message_date, logging_session_id)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    ON CONFLICT (chat_id, message_id, logging_session_id) DO NOTHING;`

	bumpSessionCounters = `UPDATE logging_sessions
    SET messages_logged = messages_logged + 1, last_message_at = NOW()
    WHERE id = $1;`

	purgeMessageLogs = `DELETE FROM message_logs WHERE logged_at < NOW() - $1::interval;`
)

const (
	insertListener = `INSERT INTO message_listeners
    (user_id, source_chat_id, source_chat_title, source_chat_username, source_chat_type, is_active, container_name, container_status)
    VALUES ($1, $2, $3, $4, $5, TRUE, $6, 'creating')
    RETURNING id, created_at, updated_at;`

	listenerColumns = `id, user_id, source_chat_id, source_chat_title, source_chat_username, source_chat_type,
    is_active, container_name, container_id, container_status, messages_saved, errors_count, last_error,
    created_at, updated_at, stopped_at, last_message_at`

	markListenerRunning = `UPDATE message_listeners
    SET container_id = $2, container_status = 'running'
    WHERE id = $1;`

	markListenerError = `UPDATE message_listeners
    SET is_active = FALSE, container_status = 'error', last_error = $2, errors_count = errors_count + 1
    WHERE id = $1;`

	markListenerStopped = `UPDATE message_listeners
    SET is_active = FALSE, container_status = 'stopped', stopped_at = NOW()
    WHERE id = $1;`

	deleteListener = `DELETE FROM message_listeners WHERE id = $1;`

	cleanupOrphanedListeners = `UPDATE message_listeners
    SET container_status = 'removed'
    WHERE container_status = 'error' AND updated_at < NOW() - $1::interval;`
)

const (
	insertElaboration = `INSERT INTO message_elaborations
    (listener_id, type, name, config, is_active, priority)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING id, created_at, updated_at;`

	elaborationColumns = `id, listener_id, type, name, config, is_active, priority,
    matches_count, errors_count, created_at, updated_at`

	updateElaboration = `UPDATE message_elaborations
    SET name = $3, config = $4, is_active = $5, priority = $6
    WHERE id = $1 AND listener_id = $2;`

	deleteElaboration = `DELETE FROM message_elaborations WHERE id = $2 AND listener_id = $1;`

	listElaborations = `SELECT ` + elaborationColumns + `
    FROM message_elaborations
    WHERE listener_id = $1
    ORDER BY priority, id;`
)

const (
	insertSavedMessage = `INSERT INTO saved_messages
    (listener_id, message_id, text, data, sender_id, sender_name, message_date)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    ON CONFLICT (listener_id, message_id) DO NOTHING
    RETURNING id;`

	bumpListenerCounters = `UPDATE message_listeners
    SET messages_saved = messages_saved + 1, last_message_at = NOW()
    WHERE id = $1;`

	insertExtractedValue = `INSERT INTO extracted_values
    (elaboration_id, message_id, rule_name, extracted_value, occurrence_index)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (elaboration_id, message_id, rule_name, occurrence_index) DO NOTHING;`

	cleanupOldSavedMessages = `DELETE FROM saved_messages WHERE saved_at < NOW() - $1::interval;`
)
