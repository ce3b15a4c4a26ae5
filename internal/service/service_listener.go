package service

import (
	"context"

	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/internal/supervisor"
	"github.com/solanagram/solanagram/models"
)

// listenerService drives the listener/elaboration pipeline. The
// one-redirect-per-listener rule is enforced here before the insert ever
// reaches the database, and again by the partial unique index underneath.
type listenerService struct {
	listeners  store.ListenerRepository
	saved      store.SavedMessageRepository
	supervisor *supervisor.Supervisor
	telegram   TelegramService
	logger     *logger.Logger
}

// NewListenerService wires the listener service.
func NewListenerService(listeners store.ListenerRepository, saved store.SavedMessageRepository,
	sup *supervisor.Supervisor, tg TelegramService, log *logger.Logger) ListenerService {
	return &listenerService{
		listeners:  listeners,
		saved:      saved,
		supervisor: sup,
		telegram:   tg,
		logger:     log,
	}
}

// StartListener resolves the source chat and launches the listener worker.
func (s *listenerService) StartListener(ctx context.Context, userID, sourceChatID int64) (models.MessageListener, error) {
	if sourceChatID == 0 {
		return models.MessageListener{}, ErrInvalidDataProvided
	}

	chat, err := s.telegram.ResolveChat(ctx, userID, sourceChatID)
	if err != nil {
		return models.MessageListener{}, err
	}

	return s.supervisor.StartListener(ctx, userID, chat)
}

// StopListener stops the worker and deactivates the row. Idempotent.
func (s *listenerService) StopListener(ctx context.Context, userID, listenerID int64) error {
	return s.supervisor.StopListener(ctx, userID, listenerID)
}

// RestartListener relaunches the worker with the current elaborations.
func (s *listenerService) RestartListener(ctx context.Context, userID, listenerID int64) error {
	return s.supervisor.RestartListener(ctx, userID, listenerID)
}

// DeleteListener stops the worker and removes the row with its children.
func (s *listenerService) DeleteListener(ctx context.Context, userID, listenerID int64) error {
	return s.supervisor.DeleteListener(ctx, userID, listenerID)
}

// ListListeners returns all listener rows of the caller.
func (s *listenerService) ListListeners(ctx context.Context, userID int64) ([]models.MessageListener, error) {
	return s.listeners.ListByUser(ctx, userID)
}

// GetListener returns one listener with its elaborations.
func (s *listenerService) GetListener(ctx context.Context, userID, listenerID int64) (models.MessageListener, error) {
	return s.listeners.GetByID(ctx, userID, listenerID)
}

// AddElaboration validates and inserts one rule. A second redirect is
// refused here; the database partial index backs the same invariant against
// raced inserts.
func (s *listenerService) AddElaboration(ctx context.Context, userID int64, e models.MessageElaboration) (models.MessageElaboration, error) {
	if e.Name == "" {
		return models.MessageElaboration{}, ErrInvalidDataProvided
	}

	switch e.Type {
	case models.ElaborationTypeExtractor:
		if e.Config.SearchText == "" || e.Config.ValueLength <= 0 {
			return models.MessageElaboration{}, ErrInvalidDataProvided
		}
	case models.ElaborationTypeRedirect:
		if e.Config.TargetChatID == 0 {
			return models.MessageElaboration{}, ErrInvalidDataProvided
		}
	default:
		return models.MessageElaboration{}, ErrInvalidDataProvided
	}

	listener, err := s.listeners.GetByID(ctx, userID, e.ListenerID)
	if err != nil {
		return models.MessageElaboration{}, err
	}

	if e.Type == models.ElaborationTypeRedirect {
		for _, existing := range listener.Elaborations {
			if existing.Type == models.ElaborationTypeRedirect {
				return models.MessageElaboration{}, ErrRedirectAlreadyConfigured
			}
		}
	}

	created, err := s.listeners.CreateElaboration(ctx, e)
	if err != nil {
		if err == store.ErrRedirectExists {
			return models.MessageElaboration{}, ErrRedirectAlreadyConfigured
		}
		return models.MessageElaboration{}, err
	}
	return created, nil
}

// UpdateElaboration rewrites a rule after an ownership check.
func (s *listenerService) UpdateElaboration(ctx context.Context, userID int64, e models.MessageElaboration) error {
	if _, err := s.listeners.GetByID(ctx, userID, e.ListenerID); err != nil {
		return err
	}
	return s.listeners.UpdateElaboration(ctx, e)
}

// DeleteElaboration removes a rule after an ownership check.
func (s *listenerService) DeleteElaboration(ctx context.Context, userID, listenerID, elaborationID int64) error {
	if _, err := s.listeners.GetByID(ctx, userID, listenerID); err != nil {
		return err
	}
	return s.listeners.DeleteElaboration(ctx, listenerID, elaborationID)
}

// ListenerMessages returns one page of saved messages after an ownership
// check.
func (s *listenerService) ListenerMessages(ctx context.Context, userID, listenerID int64, limit, offset int) (models.Page[models.SavedMessage], error) {
	if _, err := s.listeners.GetByID(ctx, userID, listenerID); err != nil {
		return models.Page[models.SavedMessage]{}, err
	}
	return s.saved.ListByListener(ctx, listenerID, limit, offset)
}

// CleanupOrphaned triggers a supervisor-level orphan sweep.
func (s *listenerService) CleanupOrphaned(ctx context.Context) (int64, error) {
	return s.supervisor.CleanupOrphaned(ctx)
}
