package service

import (
	"context"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/internal/supervisor"
	"github.com/solanagram/solanagram/models"
)

// loggingService drives the logging-session pipeline: it resolves the chat,
// delegates worker lifecycle to the supervisor, and serves reads from the
// store.
type loggingService struct {
	sessions   store.LoggingSessionRepository
	messages   store.MessageLogRepository
	supervisor *supervisor.Supervisor
	telegram   TelegramService
	logger     *logger.Logger
}

// NewLoggingService wires the logging-session service.
func NewLoggingService(sessions store.LoggingSessionRepository, messages store.MessageLogRepository,
	sup *supervisor.Supervisor, tg TelegramService, log *logger.Logger) LoggingService {
	return &loggingService{
		sessions:   sessions,
		messages:   messages,
		supervisor: sup,
		telegram:   tg,
		logger:     log,
	}
}

// StartLogging resolves the chat from the caller's dialogs and launches the
// logging worker. The supervisor enforces the one-active-session invariant.
func (s *loggingService) StartLogging(ctx context.Context, userID, chatID int64) (models.LoggingSession, error) {
	if chatID == 0 {
		return models.LoggingSession{}, ErrInvalidDataProvided
	}

	chat, err := s.telegram.ResolveChat(ctx, userID, chatID)
	if err != nil {
		return models.LoggingSession{}, err
	}

	return s.supervisor.StartLogging(ctx, userID, chat)
}

// StopLogging stops the worker and deactivates the row. Idempotent.
func (s *loggingService) StopLogging(ctx context.Context, userID, sessionID int64) error {
	return s.supervisor.StopLogging(ctx, userID, sessionID)
}

// DeleteLogging stops the worker and removes the row with its history.
func (s *loggingService) DeleteLogging(ctx context.Context, userID, sessionID int64) error {
	return s.supervisor.DeleteLogging(ctx, userID, sessionID)
}

// ListSessions returns all session rows of the caller.
func (s *loggingService) ListSessions(ctx context.Context, userID int64) ([]models.LoggingSession, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// SessionMessages returns one page of captured messages.
func (s *loggingService) SessionMessages(ctx context.Context, userID, sessionID int64, limit, offset int) (models.Page[models.MessageLog], error) {
	// Ownership check before the page read.
	if _, err := s.sessions.GetByID(ctx, userID, sessionID); err != nil {
		return models.Page[models.MessageLog]{}, err
	}
	return s.messages.ListBySession(ctx, userID, sessionID, limit, offset)
}

// ChatStatus returns the active session for (user, chat), or
// store.ErrSessionNotFound when none runs.
func (s *loggingService) ChatStatus(ctx context.Context, userID, chatID int64) (models.LoggingSession, error) {
	return s.sessions.ActiveByChat(ctx, userID, chatID)
}
