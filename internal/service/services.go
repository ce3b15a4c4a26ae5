package service

import (
	"time"

	"github.com/solanagram/solanagram/internal/bridge"
	"github.com/solanagram/solanagram/internal/config"
	"github.com/solanagram/solanagram/internal/crypto"
	"github.com/solanagram/solanagram/internal/logger"
	"github.com/solanagram/solanagram/internal/metrics"
	"github.com/solanagram/solanagram/internal/session"
	"github.com/solanagram/solanagram/internal/store"
	"github.com/solanagram/solanagram/internal/supervisor"
)

// Services aggregates every application service behind one handle for the
// HTTP layer.
type Services struct {
	Auth     AuthService
	Telegram TelegramService
	Logging  LoggingService
	Listener ListenerService
	Metrics  *metrics.LoginMetrics
}

// Deps carries the infrastructure the services are built over.
type Deps struct {
	Config     *config.Config
	Storages   *store.Storages
	Cipher     *crypto.Cipher
	Bridge     *bridge.Bridge
	Manager    *session.Manager
	Supervisor *supervisor.Supervisor
	Metrics    *metrics.LoginMetrics
	Logger     *logger.Logger
}

// NewServices wires the full service graph. The pending-code cache and SMS
// counter use Redis when configured, in-process fallbacks otherwise.
func NewServices(d Deps) *Services {
	var codes session.CodeCache
	var sms session.SMSCounter

	smsWindow := time.Duration(d.Config.Telegram.SMSCodeResetHours) * time.Hour
	if d.Storages.Redis != nil {
		codes = session.NewRedisCodeCache(d.Storages.Redis)
		sms = session.NewRedisSMSCounter(d.Storages.Redis, d.Config.Telegram.SMSCodeLimit, smsWindow)
	} else {
		codes = session.NewMemoryCodeCache()
		sms = session.NewMemorySMSCounter(d.Config.Telegram.SMSCodeLimit, smsWindow)
	}

	tg := NewTelegramService(d.Storages.Users, d.Cipher, d.Manager, d.Bridge,
		codes, sms, d.Metrics, d.Config.Telegram.CallTimeout(), d.Logger)

	return &Services{
		Auth:     NewAuthService(d.Storages.Users, d.Cipher, d.Config.App, d.Logger),
		Telegram: tg,
		Logging:  NewLoggingService(d.Storages.LoggingSessions, d.Storages.MessageLogs, d.Supervisor, tg, d.Logger),
		Listener: NewListenerService(d.Storages.Listeners, d.Storages.SavedMessages, d.Supervisor, tg, d.Logger),
		Metrics:  d.Metrics,
	}
}
