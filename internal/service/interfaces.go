package service

import (
	"context"

	"github.com/solanagram/solanagram/models"
)

// AuthService covers platform accounts: registration, password login, JWT
// lifecycle, and api-credential updates.
type AuthService interface {
	RegisterUser(ctx context.Context, phone, password string, apiID int, apiHash string) (models.User, error)
	Login(ctx context.Context, phone, password string) (models.User, error)
	ValidateSession(ctx context.Context, userID int64) (models.User, error)
	ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error
	UpdateCredentials(ctx context.Context, userID int64, apiID int, apiHash string) error
	CreateToken(ctx context.Context, user models.User) (models.Token, error)
	ParseToken(ctx context.Context, tokenString string) (models.Token, error)
	MarkLogin(ctx context.Context, userID int64)
}

// TelegramService covers the Telegram auth-flow state machine and dialog
// browsing.
type TelegramService interface {
	SendLoginCode(ctx context.Context, phone string, forceNew bool) (SendCodeResult, error)
	VerifyLoginCode(ctx context.Context, phone, code, password string) (models.User, error)
	CheckCachedCode(ctx context.Context, phone string) (models.CachedCodeStatus, error)
	UseCachedCode(ctx context.Context, phone, code string) (models.User, error)
	ClearCachedCode(ctx context.Context, phone string) error
	SMSStatus(ctx context.Context, phone string) (models.SMSCounterStatus, error)
	Reactivate(ctx context.Context, userID int64) (ReactivateResult, error)
	VerifySessionCode(ctx context.Context, userID int64, code, password string) (models.User, error)
	GetChats(ctx context.Context, userID int64) ([]models.Chat, error)
	ResolveChat(ctx context.Context, userID, chatID int64) (models.Chat, error)
}

// LoggingService covers the logging-session pipeline.
type LoggingService interface {
	StartLogging(ctx context.Context, userID, chatID int64) (models.LoggingSession, error)
	StopLogging(ctx context.Context, userID, sessionID int64) error
	DeleteLogging(ctx context.Context, userID, sessionID int64) error
	ListSessions(ctx context.Context, userID int64) ([]models.LoggingSession, error)
	SessionMessages(ctx context.Context, userID, sessionID int64, limit, offset int) (models.Page[models.MessageLog], error)
	ChatStatus(ctx context.Context, userID, chatID int64) (models.LoggingSession, error)
}

// ListenerService covers the listener/elaboration pipeline.
type ListenerService interface {
	StartListener(ctx context.Context, userID, sourceChatID int64) (models.MessageListener, error)
	StopListener(ctx context.Context, userID, listenerID int64) error
	RestartListener(ctx context.Context, userID, listenerID int64) error
	DeleteListener(ctx context.Context, userID, listenerID int64) error
	ListListeners(ctx context.Context, userID int64) ([]models.MessageListener, error)
	GetListener(ctx context.Context, userID, listenerID int64) (models.MessageListener, error)
	AddElaboration(ctx context.Context, userID int64, e models.MessageElaboration) (models.MessageElaboration, error)
	UpdateElaboration(ctx context.Context, userID int64, e models.MessageElaboration) error
	DeleteElaboration(ctx context.Context, userID, listenerID, elaborationID int64) error
	ListenerMessages(ctx context.Context, userID, listenerID int64, limit, offset int) (models.Page[models.SavedMessage], error)
	CleanupOrphaned(ctx context.Context) (int64, error)
}
